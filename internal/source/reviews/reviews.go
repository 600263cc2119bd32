// Package reviews holds the community rating adapters. They only accept an
// exact (case-insensitive) title match: a wrong rating attached to a listing
// is worse than no rating at all.
package reviews

import "strings"

// searchQuery turns a game name into the slug both rating sites expect.
func searchQuery(name string) string {
	q := strings.ToLower(name)
	q = strings.ReplaceAll(q, ":", "")
	q = strings.ReplaceAll(q, "'", "")
	return strings.ReplaceAll(q, " ", "-")
}
