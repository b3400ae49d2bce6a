// Package results persists sweep rows so runs can be compared later.
package results

import (
	"context"
	"time"
)

// Row mirrors sweep.Row for persistence. Cost fields are only meaningful
// when Failed is false.
type Row struct {
	Index         int     `json:"index"`
	Target        float64 `json:"target"`
	Status        string  `json:"status"`
	Failed        bool    `json:"failed"`
	Reason        string  `json:"reason,omitempty"`
	TotalCost     float64 `json:"total_cost,omitempty"`
	EnergyCost    float64 `json:"energy_cost,omitempty"`
	PenaltyCost   float64 `json:"penalty_cost,omitempty"`
	PenaltyShare  float64 `json:"penalty_share,omitempty"`
	DelayHours    float64 `json:"delay_hours,omitempty"`
	OffHoursHours float64 `json:"off_hours_hours,omitempty"`
	Optimal       bool    `json:"optimal,omitempty"`
	// Incumbent is the objective of the best point a timed-out solve found.
	Incumbent  *float64 `json:"incumbent,omitempty"`
	WallTimeMS int64    `json:"wall_time_ms"`
}

// Record is one persisted sweep row.
type Record struct {
	RunID       string    `json:"run_id"`
	Timestamp   time.Time `json:"timestamp"`
	Fingerprint string    `json:"fingerprint"`
	Row         Row       `json:"row"`
}

// Query filters records. Zero values match everything.
type Query struct {
	RunID      string
	Start      time.Time
	End        time.Time
	FailedOnly bool
}

func (q Query) match(r Record) bool {
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.FailedOnly && !r.Row.Failed {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
