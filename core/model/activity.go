package model

import "fmt"

// Activity is a unit of work a resource must perform once within the horizon.
// Times are slot indices (hours from the start of the horizon).
type Activity struct {
	ResourceID    string `json:"resource_id" yaml:"resource_id"`
	ID            string `json:"id" yaml:"id"`
	EarliestStart int    `json:"earliest_start" yaml:"earliest_start"`
	LatestEnd     int    `json:"latest_end" yaml:"latest_end"`
	Duration      int    `json:"duration" yaml:"duration"`
}

// Key identifies the activity within the fleet.
func (a Activity) Key() string { return a.ResourceID + "/" + a.ID }

// Validate checks the activity window against its duration.
func (a Activity) Validate() error {
	if err := CheckID("activity", a.ID); err != nil {
		return err
	}
	if a.Duration <= 0 {
		return fmt.Errorf("activity %s: duration must be positive", a.Key())
	}
	if a.EarliestStart < 0 {
		return fmt.Errorf("activity %s: earliest start must not be negative", a.Key())
	}
	if a.EarliestStart > a.LatestEnd-a.Duration {
		return fmt.Errorf("activity %s: window [%d,%d] cannot fit duration %d",
			a.Key(), a.EarliestStart, a.LatestEnd, a.Duration)
	}
	return nil
}

// LastStart returns the latest admissible start slot for a horizon of h
// slots. Starting after LatestEnd-Duration is allowed and counts as delay.
func (a Activity) LastStart(h int) int {
	last := a.LatestEnd
	if h-a.Duration < last {
		last = h - a.Duration
	}
	return last
}

// Lateness returns the hours by which an activity started at start finishes
// after its latest end.
func (a Activity) Lateness(start int) int {
	if over := start + a.Duration - a.LatestEnd; over > 0 {
		return over
	}
	return 0
}
