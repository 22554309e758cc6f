package domain

import "strings"

// Priority is the urgency tier of a restock alert.
type Priority string

const (
	PriorityLow    Priority = "Baja"
	PriorityMedium Priority = "Media"
	PriorityHigh   Priority = "Alta"
)

// UnknownName is used when a product or store has no display name.
const UnknownName = "unknown"

var priorityRanks = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
}

var priorityByLabel = map[string]Priority{
	"baja":  PriorityLow,
	"low":   PriorityLow,
	"media": PriorityMedium,
	"med":   PriorityMedium,
	"alta":  PriorityHigh,
	"high":  PriorityHigh,
}

// Rank orders priorities; unknown values rank 0.
func (p Priority) Rank() int {
	return priorityRanks[p]
}

// Valid reports whether p is one of the three tiers.
func (p Priority) Valid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// ParsePriority returns the tier for a label (case-insensitive, Spanish or English).
func ParsePriority(label string) (Priority, bool) {
	p, ok := priorityByLabel[strings.ToLower(strings.TrimSpace(label))]

	return p, ok
}
