// Package domain contains core concepts of the chat system.
// This file defines Participant entities and the staleness rule used for eviction.
// No runtime, network, or storage logic should be added here.
package domain

import "time"

// Participant is an active member of the room. Name is unique among active participants.
type Participant struct {
	ID       string
	Name     string
	LastSeen time.Time
}

// IsStale reports whether the participant has not signalled presence for at least threshold.
func (p Participant) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastSeen) >= threshold
}
