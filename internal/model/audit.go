package model

import (
	"time"
)

// ActionRecord is one completed control action, kept in the console's local
// ring buffer. The ring holds the most recent entries only and is cleared
// by process restart.
type ActionRecord struct {
	ID      string    `json:"id"`
	Ts      time.Time `json:"ts"`
	Action  string    `json:"action"`
	OK      bool      `json:"ok"`
	Details string    `json:"details,omitempty"`
}
