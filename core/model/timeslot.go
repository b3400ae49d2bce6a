package model

import "fmt"

// HoursPerDay is the number of slots in a day.
const HoursPerDay = 24

// WorkBand is the daily [StartHour, EndHour) interval during which work does
// not incur off-hours penalties.
type WorkBand struct {
	StartHour int `json:"start_hour" yaml:"start_hour"`
	EndHour   int `json:"end_hour" yaml:"end_hour"`
}

// DefaultWorkBand covers hours 6 to 16 inclusive.
var DefaultWorkBand = WorkBand{StartHour: 6, EndHour: 17}

// Validate checks the band lies within a day.
func (b WorkBand) Validate() error {
	if b.StartHour < 0 || b.EndHour > HoursPerDay || b.StartHour >= b.EndHour {
		return fmt.Errorf("invalid work band [%d,%d)", b.StartHour, b.EndHour)
	}
	return nil
}

// Contains reports whether the hour of day h is a work hour.
func (b WorkBand) Contains(h int) bool { return h >= b.StartHour && h < b.EndHour }

// TimeSlot is one hour of the planning horizon.
type TimeSlot struct {
	Index int
	Price float64 // electricity price per kWh
	Work  bool
}

// Hour returns the hour of day of the slot.
func (s TimeSlot) Hour() int { return s.Index % HoursPerDay }

// Day returns the zero-based day of the slot.
func (s TimeSlot) Day() int { return s.Index / HoursPerDay }

// NewTimeSlots generates the slots of a horizon from its hourly prices.
func NewTimeSlots(prices []float64, band WorkBand) []TimeSlot {
	slots := make([]TimeSlot, len(prices))
	for i, p := range prices {
		slots[i] = TimeSlot{Index: i, Price: p, Work: band.Contains(i % HoursPerDay)}
	}
	return slots
}

// Penalties holds the weights applied to schedule deviations.
type Penalties struct {
	DelayPerHour    float64 `json:"delay_per_hour" yaml:"delay_per_hour"`
	OffHoursPerHour float64 `json:"off_hours_per_hour" yaml:"off_hours_per_hour"`
}
