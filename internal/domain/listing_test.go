package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDeal(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		refs     map[Source]Reference
		expected Deal
	}{
		{
			name:     "no references means no deal",
			price:    20,
			refs:     nil,
			expected: Deal{},
		},
		{
			name:  "listing already cheapest",
			price: 9,
			refs: map[Source]Reference{
				SourcePhilibert: {Source: SourcePhilibert, Price: 10},
				SourceUltrajeux: {Source: SourceUltrajeux, Price: 12},
			},
			expected: Deal{},
		},
		{
			name:  "listing more expensive than cheapest reference",
			price: 15,
			refs: map[Source]Reference{
				SourcePhilibert: {Source: SourcePhilibert, Price: 10},
			},
			expected: Deal{Price: 5, Percentage: 50},
		},
		{
			name:  "feed scenario 20 vs 18 and 22",
			price: 20,
			refs: map[Source]Reference{
				SourcePhilibert: {Source: SourcePhilibert, Price: 18},
				SourceAgorajeux: {Source: SourceAgorajeux, Price: 22},
			},
			expected: Deal{Price: 2, Percentage: 11},
		},
		{
			name:  "break-even collapses to no deal",
			price: 10,
			refs: map[Source]Reference{
				SourcePhilibert: {Source: SourcePhilibert, Price: 10},
			},
			expected: Deal{},
		},
		{
			name:  "zero reference price is ignored as no deal",
			price: 10,
			refs: map[Source]Reference{
				SourcePhilibert: {Source: SourcePhilibert, Price: 0},
			},
			expected: Deal{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Listing{Price: tt.price, References: tt.refs}
			l.ComputeDeal()
			assert.Equal(t, tt.expected, l.Deal)
			assert.Equal(t, tt.expected != Deal{}, l.HasDeal())
		})
	}
}

func TestComputeDeal_OrderIndependent(t *testing.T) {
	l := Listing{
		Price: 30,
		References: map[Source]Reference{
			SourcePhilibert:  {Source: SourcePhilibert, Price: 25},
			SourceAgorajeux:  {Source: SourceAgorajeux, Price: 20},
			SourceUltrajeux:  {Source: SourceUltrajeux, Price: 27},
			SourceLudocortex: {Source: SourceLudocortex, Price: 20},
		},
	}

	for i := 0; i < 10; i++ {
		l.ComputeDeal()
		assert.Equal(t, Deal{Price: 10, Percentage: 50}, l.Deal)
	}
}

func TestComputeAverageNote(t *testing.T) {
	tests := []struct {
		name      string
		reviewers map[Source]Reviewer
		expected  float64
	}{
		{
			name:      "no reviewers",
			reviewers: nil,
			expected:  0,
		},
		{
			name: "zero-count reviewer excluded",
			reviewers: map[Source]Reviewer{
				SourceBGG:      {Source: SourceBGG, Note: 8, Count: 10},
				SourceTricTrac: {Source: SourceTricTrac, Note: 4, Count: 0},
			},
			expected: 8.0,
		},
		{
			name: "weighted by sample count",
			reviewers: map[Source]Reviewer{
				SourceBGG:      {Source: SourceBGG, Note: 8, Count: 30},
				SourceTricTrac: {Source: SourceTricTrac, Note: 6, Count: 10},
			},
			expected: 7.5,
		},
		{
			name: "all counts zero keeps sentinel",
			reviewers: map[Source]Reviewer{
				SourceBGG: {Source: SourceBGG, Note: 9, Count: 0},
			},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Review{Reviewers: tt.reviewers}
			r.ComputeAverageNote()
			assert.InDelta(t, tt.expected, r.AverageNote, 1e-9)
		})
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Foo - Base (VF)", "Foo - Base"},
		{"Catan (extension marins) (VF)", "Catan"},
		{"7 Wonders", "7 Wonders"},
		{"(weird) leading", "leading"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CleanName(tt.in))
	}
}
