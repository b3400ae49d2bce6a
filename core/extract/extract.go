// Package extract turns solved assignments into cost summaries.
package extract

import (
	"fmt"
	"math"

	"github.com/kilianp07/fleetplan/core/params"
	"github.com/kilianp07/fleetplan/core/planner"
	"github.com/kilianp07/fleetplan/core/solver"
)

// Summary is the cost breakdown of one solved plan.
type Summary struct {
	Target        float64          `json:"target"`
	TotalCost     float64          `json:"total_cost"`
	EnergyCost    float64          `json:"energy_cost"`
	DelayCost     float64          `json:"delay_cost"`
	OffHoursCost  float64          `json:"off_hours_cost"`
	DelayHours    float64          `json:"delay_hours"`
	OffHoursHours float64          `json:"off_hours_hours"`
	PenaltyCost   float64          `json:"penalty_cost"`
	PenaltyShare  float64          `json:"penalty_share"`
	Optimal       bool             `json:"optimal"`
	Objective     float64          `json:"objective"`
	Schedule      planner.Schedule `json:"schedule"`
}

func (s *Summary) finish() {
	s.PenaltyCost = s.DelayCost + s.OffHoursCost
	s.TotalCost = s.EnergyCost + s.PenaltyCost
	if s.TotalCost != 0 {
		s.PenaltyShare = s.PenaltyCost / s.TotalCost
	}
}

// Extract computes the summary of res. Only Optimal and Feasible results can
// be extracted.
func Extract(res solver.Result, p *planner.Plan, snap *params.Snapshot) (Summary, error) {
	if !res.Status.HasSolution() {
		return Summary{}, &ExtractionError{Target: p.Target(), Status: res.Status, Reason: "no usable assignment"}
	}
	if len(res.Values) != p.Model.NumVars() {
		return Summary{}, &ExtractionError{Target: p.Target(), Status: res.Status,
			Reason: fmt.Sprintf("assignment has %d values, model has %d variables", len(res.Values), p.Model.NumVars())}
	}
	v := res.Values
	pen := snap.Penalties()
	s := Summary{Target: p.Target(), Optimal: res.Status == solver.Optimal, Objective: res.Objective}
	for ri, r := range p.Resources() {
		for t := 0; t < p.Horizon(); t++ {
			s.EnergyCost += snap.Price(t) * r.ChargeRateKW * v[p.ChargeVar(ri, t)]
		}
		for ai := range p.Activities(ri) {
			s.DelayHours += v[p.DelayVar(ri, ai)]
			s.OffHoursHours += v[p.OffHoursVar(ri, ai)]
		}
	}
	s.DelayCost = pen.DelayPerHour * s.DelayHours
	s.OffHoursCost = pen.OffHoursPerHour * s.OffHoursHours
	s.finish()

	if math.Abs(s.TotalCost-p.Model.ObjectiveValue(v)) > 1e-6*math.Max(1, math.Abs(s.TotalCost)) {
		return Summary{}, &ExtractionError{Target: p.Target(), Status: res.Status,
			Reason: fmt.Sprintf("cost breakdown %g does not match objective %g", s.TotalCost, p.Model.ObjectiveValue(v))}
	}
	s.Schedule = p.Decode(v)
	return s, nil
}

// Recompute derives the cost components from a decoded schedule alone:
// charge hours, the hours each activity occupies and its start.
func Recompute(sched planner.Schedule, snap *params.Snapshot) (Summary, error) {
	rates := make(map[string]float64)
	for _, r := range snap.Resources() {
		rates[r.ID] = r.ChargeRateKW
	}
	pen := snap.Penalties()
	var s Summary
	for _, rs := range sched.Resources {
		rate, ok := rates[rs.ResourceID]
		if !ok {
			return Summary{}, fmt.Errorf("unknown resource %q", rs.ResourceID)
		}
		for _, t := range rs.ChargeHours {
			s.EnergyCost += snap.Price(t) * rate
		}
		acts := snap.Activities(rs.ResourceID)
		for _, run := range rs.Activities {
			idx := -1
			for i, a := range acts {
				if a.ID == run.ActivityID {
					idx = i
				}
			}
			if idx < 0 {
				return Summary{}, fmt.Errorf("unknown activity %s/%s", rs.ResourceID, run.ActivityID)
			}
			s.DelayHours += float64(acts[idx].Lateness(run.Start))
			for _, t := range run.Hours {
				if !snap.IsWork(t) {
					s.OffHoursHours++
				}
			}
		}
	}
	s.DelayCost = pen.DelayPerHour * s.DelayHours
	s.OffHoursCost = pen.OffHoursPerHour * s.OffHoursHours
	s.finish()
	s.Schedule = sched
	return s, nil
}
