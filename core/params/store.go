package params

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/kilianp07/fleetplan/core/model"
)

// DefaultReserveFraction is the forward reserve margin kept above the next
// hour's consumption, as a fraction of capacity.
const DefaultReserveFraction = 0.04

// DefaultHorizon is one week of hourly slots.
const DefaultHorizon = 7 * model.HoursPerDay

// Input is the raw data handed to Load.
type Input struct {
	Resources       []model.Resource
	Activities      []model.Activity
	Prices          []float64
	Penalties       model.Penalties
	Horizon         int
	WorkBand        model.WorkBand
	ReserveFraction float64
}

// Snapshot is a validated, read-only view over the planning data.
type Snapshot struct {
	resources  []model.Resource
	activities map[string][]model.Activity
	slots      []model.TimeSlot
	penalties  model.Penalties
	band       model.WorkBand
	reserve    float64
	digest     string
}

// Load validates in and returns a snapshot. Any structural inconsistency is
// reported as a *DataError.
func Load(in Input) (*Snapshot, error) {
	if in.Horizon <= 0 {
		return nil, dataErrorf("horizon", "must be positive, got %d", in.Horizon)
	}
	if len(in.Prices) != in.Horizon {
		return nil, dataErrorf("prices", "length %d does not match horizon %d", len(in.Prices), in.Horizon)
	}
	for t, p := range in.Prices {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, dataErrorf("prices", "price at hour %d is not finite", t)
		}
	}
	if err := in.WorkBand.Validate(); err != nil {
		return nil, dataErrorf("work_band", "%v", err)
	}
	if in.Penalties.DelayPerHour < 0 || in.Penalties.OffHoursPerHour < 0 {
		return nil, dataErrorf("penalties", "weights must not be negative")
	}
	if in.ReserveFraction < 0 || in.ReserveFraction >= 1 {
		return nil, dataErrorf("reserve_fraction", "must be in [0,1), got %g", in.ReserveFraction)
	}
	if len(in.Resources) == 0 {
		return nil, dataErrorf("resources", "fleet is empty")
	}

	s := &Snapshot{
		resources:  make([]model.Resource, 0, len(in.Resources)),
		activities: make(map[string][]model.Activity, len(in.Resources)),
		slots:      model.NewTimeSlots(in.Prices, in.WorkBand),
		penalties:  in.Penalties,
		band:       in.WorkBand,
		reserve:    in.ReserveFraction,
	}
	for _, r := range in.Resources {
		if err := r.Validate(); err != nil {
			return nil, dataErrorf("resources", "%v", err)
		}
		if _, dup := s.activities[r.ID]; dup {
			return nil, dataErrorf("resources", "duplicate resource %s", r.ID)
		}
		s.resources = append(s.resources, r)
		s.activities[r.ID] = nil
	}

	seen := make(map[string]bool, len(in.Activities))
	for _, a := range in.Activities {
		if err := a.Validate(); err != nil {
			return nil, dataErrorf("activities", "%v", err)
		}
		acts, ok := s.activities[a.ResourceID]
		if !ok {
			return nil, dataErrorf("activities", "activity %s references unknown resource", a.Key())
		}
		if seen[a.Key()] {
			return nil, dataErrorf("activities", "duplicate activity %s", a.Key())
		}
		if a.EarliestStart+a.Duration > in.Horizon {
			return nil, dataErrorf("activities", "activity %s cannot complete within horizon %d", a.Key(), in.Horizon)
		}
		seen[a.Key()] = true
		s.activities[a.ResourceID] = append(acts, a)
	}
	s.digest = s.fingerprint()
	return s, nil
}

// Horizon returns the number of hourly slots.
func (s *Snapshot) Horizon() int { return len(s.slots) }

// Resources returns a copy of the fleet in input order.
func (s *Snapshot) Resources() []model.Resource {
	out := make([]model.Resource, len(s.resources))
	copy(out, s.resources)
	return out
}

// Activities returns a copy of the activities of a resource in execution
// order.
func (s *Snapshot) Activities(resourceID string) []model.Activity {
	acts := s.activities[resourceID]
	out := make([]model.Activity, len(acts))
	copy(out, acts)
	return out
}

// ActivityCount returns the number of activities across the fleet.
func (s *Snapshot) ActivityCount() int {
	n := 0
	for _, acts := range s.activities {
		n += len(acts)
	}
	return n
}

// Slots returns a copy of the time slots.
func (s *Snapshot) Slots() []model.TimeSlot {
	out := make([]model.TimeSlot, len(s.slots))
	copy(out, s.slots)
	return out
}

// Price returns the electricity price of slot t.
func (s *Snapshot) Price(t int) float64 { return s.slots[t].Price }

// IsWork reports whether slot t falls within the work band.
func (s *Snapshot) IsWork(t int) bool { return s.slots[t].Work }

// Penalties returns the penalty weights.
func (s *Snapshot) Penalties() model.Penalties { return s.penalties }

// WorkBand returns the daily work band.
func (s *Snapshot) WorkBand() model.WorkBand { return s.band }

// Reserve returns the reserve fraction applying to r.
func (s *Snapshot) Reserve(r model.Resource) float64 {
	if r.ReserveFraction > 0 {
		return r.ReserveFraction
	}
	return s.reserve
}

// Fingerprint is a stable digest of the validated data.
func (s *Snapshot) Fingerprint() string { return s.digest }

func (s *Snapshot) fingerprint() string {
	h := sha256.New()
	buf := make([]byte, 8)
	f := func(v float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}
	i := func(v int) { f(float64(v)) }
	id := func(v string) {
		i(len(v))
		h.Write([]byte(v))
	}
	for _, r := range s.resources {
		id(r.ID)
		f(r.CapacityKWh)
		f(r.ChargeRateKW)
		f(r.ConsumptionKWh)
		f(r.ReserveFraction)
		for _, a := range s.activities[r.ID] {
			id(a.ID)
			i(a.EarliestStart)
			i(a.LatestEnd)
			i(a.Duration)
		}
	}
	for _, sl := range s.slots {
		f(sl.Price)
	}
	f(s.penalties.DelayPerHour)
	f(s.penalties.OffHoursPerHour)
	i(s.band.StartHour)
	i(s.band.EndHour)
	f(s.reserve)
	return hex.EncodeToString(h.Sum(nil))
}
