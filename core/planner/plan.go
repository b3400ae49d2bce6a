package planner

import (
	"fmt"
	"math"

	"github.com/kilianp07/fleetplan/core/model"
)

// ActivityRun is the decoded execution of one activity.
type ActivityRun struct {
	ActivityID string  `json:"activity_id"`
	Start      int     `json:"start"`
	Hours      []int   `json:"hours"`
	Delay      float64 `json:"delay"`
	OffHours   float64 `json:"off_hours"`
}

// ResourceSchedule is the decoded plan of one resource.
type ResourceSchedule struct {
	ResourceID  string        `json:"resource_id"`
	ChargeHours []int         `json:"charge_hours"`
	SoC         []float64     `json:"soc"`
	Activities  []ActivityRun `json:"activities"`
}

// Schedule is the decoded plan of the whole fleet in resource order.
type Schedule struct {
	Resources []ResourceSchedule `json:"resources"`
}

// Target returns the end-of-horizon state-of-charge fraction.
func (p *Plan) Target() float64 { return p.target }

// Formulation returns the linkage encoding used.
func (p *Plan) Formulation() Formulation { return p.formulation }

// Horizon returns the number of slots.
func (p *Plan) Horizon() int { return p.horizon }

// Resources returns the resources in model order.
func (p *Plan) Resources() []model.Resource {
	out := make([]model.Resource, len(p.resources))
	copy(out, p.resources)
	return out
}

// Activities returns the activities of resource ri in model order.
func (p *Plan) Activities(ri int) []model.Activity {
	out := make([]model.Activity, len(p.activities[ri]))
	copy(out, p.activities[ri])
	return out
}

// ChargeVar returns the column of charge[r,t].
func (p *Plan) ChargeVar(ri, t int) int { return p.charge[ri][t] }

// SoCVar returns the column of soc[r,t].
func (p *Plan) SoCVar(ri, t int) int { return p.soc[ri][t] }

// EngagedVar returns the column of engaged[r,a,t]; ok is false for slots in
// which the activity can never run.
func (p *Plan) EngagedVar(ri, ai, t int) (int, bool) {
	v := p.engaged[ri][ai][t]
	return v, v >= 0
}

// StartVar returns the column of start[r,a].
func (p *Plan) StartVar(ri, ai int) int { return p.start[ri][ai] }

// DelayVar returns the column of delay[r,a].
func (p *Plan) DelayVar(ri, ai int) int { return p.delay[ri][ai] }

// OffHoursVar returns the column of offhours[r,a].
func (p *Plan) OffHoursVar(ri, ai int) int { return p.offhours[ri][ai] }

func on(x float64) bool { return x > 0.5 }

// Decode reads a solved assignment back into a schedule.
func (p *Plan) Decode(values []float64) Schedule {
	var s Schedule
	for ri, r := range p.resources {
		rs := ResourceSchedule{ResourceID: r.ID, SoC: make([]float64, p.horizon)}
		for t := 0; t < p.horizon; t++ {
			if on(values[p.charge[ri][t]]) {
				rs.ChargeHours = append(rs.ChargeHours, t)
			}
			rs.SoC[t] = values[p.soc[ri][t]]
		}
		for ai, a := range p.activities[ri] {
			run := ActivityRun{
				ActivityID: a.ID,
				Start:      int(math.Round(values[p.start[ri][ai]])),
				Delay:      values[p.delay[ri][ai]],
				OffHours:   values[p.offhours[ri][ai]],
			}
			for t, v := range p.engaged[ri][ai] {
				if v >= 0 && on(values[v]) {
					run.Hours = append(run.Hours, t)
				}
			}
			rs.Activities = append(rs.Activities, run)
		}
		s.Resources = append(s.Resources, rs)
	}
	return s
}

// Encode builds a full assignment from a schedule given as charge hours and
// activity start hours. Engagement, state of charge, delay and off-hours
// values are derived. The result can be checked with Model.Check.
func (p *Plan) Encode(s Schedule) ([]float64, error) {
	if len(s.Resources) != len(p.resources) {
		return nil, fmt.Errorf("schedule has %d resources, model has %d", len(s.Resources), len(p.resources))
	}
	values := make([]float64, p.Model.NumVars())
	for ri, r := range p.resources {
		rs := s.Resources[ri]
		if rs.ResourceID != r.ID {
			return nil, fmt.Errorf("resource %d: got %s, want %s", ri, rs.ResourceID, r.ID)
		}
		for _, t := range rs.ChargeHours {
			if t < 0 || t >= p.horizon {
				return nil, fmt.Errorf("resource %s: charge hour %d outside horizon", r.ID, t)
			}
			values[p.charge[ri][t]] = 1
		}
		if len(rs.Activities) != len(p.activities[ri]) {
			return nil, fmt.Errorf("resource %s: %d activities, want %d", r.ID, len(rs.Activities), len(p.activities[ri]))
		}
		used := make([]float64, p.horizon)
		for ai, a := range p.activities[ri] {
			start := rs.Activities[ai].Start
			if start < a.EarliestStart || start > a.LastStart(p.horizon) {
				return nil, fmt.Errorf("activity %s: start %d outside admissible range", a.Key(), start)
			}
			values[p.start[ri][ai]] = float64(start)
			values[p.delay[ri][ai]] = float64(a.Lateness(start))
			off := 0
			for t := start; t < start+a.Duration; t++ {
				values[p.engaged[ri][ai][t]] = 1
				used[t]++
				if !p.work[t] {
					off++
				}
			}
			values[p.offhours[ri][ai]] = float64(off)
			if sel := p.begin[ri][ai]; sel != nil {
				values[sel[start-a.EarliestStart]] = 1
			}
		}
		level := r.CapacityKWh
		values[p.soc[ri][0]] = level
		for t := 1; t < p.horizon; t++ {
			level += values[p.charge[ri][t]]*r.ChargeRateKW - used[t]*r.ConsumptionKWh
			values[p.soc[ri][t]] = level
		}
	}
	return values, nil
}
