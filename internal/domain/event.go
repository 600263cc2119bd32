package domain

// EventAction tags a listing lifecycle event published downstream.
type EventAction string

const (
	EventCreated EventAction = "create"
	EventUpdated EventAction = "update"
	EventDeleted EventAction = "delete"
)
