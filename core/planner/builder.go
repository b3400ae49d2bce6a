package planner

import (
	"fmt"
	"math"

	"github.com/kilianp07/fleetplan/core/milp"
	"github.com/kilianp07/fleetplan/core/model"
	"github.com/kilianp07/fleetplan/core/params"
)

// Formulation selects how activity windows are linked to engagement.
type Formulation string

const (
	StartIndexed Formulation = "start-indexed"
	BigM         Formulation = "big-m"
)

// Options tunes model construction.
type Options struct {
	Formulation Formulation `json:"formulation"`
	// ReserveFraction replaces the snapshot's global reserve margin when
	// positive. Per-resource overrides still take precedence.
	ReserveFraction float64 `json:"reserve_fraction"`
}

// Plan is a built model together with the index tables needed to read a
// solved assignment back.
type Plan struct {
	Model *milp.Model

	target      float64
	formulation Formulation
	horizon     int
	resources   []model.Resource
	activities  [][]model.Activity
	work        []bool

	charge   [][]int
	soc      [][]int
	engaged  [][][]int // -1 where the activity cannot run
	start    [][]int
	delay    [][]int
	offhours [][]int
	begin    [][][]int // start-indexed only, offset by EarliestStart
}

type builder struct {
	snap *params.Snapshot
	opts Options
	m    *milp.Model
	p    *Plan
	h    int
}

// Build constructs the charging/activity model for the given end-of-horizon
// state-of-charge target. Identical inputs always produce identical models.
func Build(snap *params.Snapshot, target float64, opts Options) (*Plan, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}
	if opts.Formulation == "" {
		opts.Formulation = StartIndexed
	}
	if opts.Formulation != StartIndexed && opts.Formulation != BigM {
		return nil, &ModelConstructionError{Target: target, Reason: fmt.Sprintf("unknown formulation %q", opts.Formulation)}
	}
	if opts.ReserveFraction < 0 || opts.ReserveFraction >= 1 {
		return nil, &ModelConstructionError{Target: target, Reason: "reserve fraction must be in [0,1)"}
	}

	b := &builder{
		snap: snap,
		opts: opts,
		m:    milp.New(fmt.Sprintf("fleetplan[target=%g,%s]", target, opts.Formulation)),
		h:    snap.Horizon(),
	}
	b.p = &Plan{
		Model:       b.m,
		target:      target,
		formulation: opts.Formulation,
		horizon:     b.h,
		resources:   snap.Resources(),
	}
	for t := 0; t < b.h; t++ {
		b.p.work = append(b.p.work, snap.IsWork(t))
	}
	for _, r := range b.p.resources {
		b.p.activities = append(b.p.activities, snap.Activities(r.ID))
	}

	b.addVariables()
	for ri := range b.p.resources {
		b.addBatteryRows(ri)
		b.addActivityRows(ri)
	}
	b.addChargerRows()
	b.addObjective()
	return b.p, nil
}

func (b *builder) addVariables() {
	p := b.p
	n := len(p.resources)
	p.charge = make([][]int, n)
	p.soc = make([][]int, n)
	p.engaged = make([][][]int, n)
	p.start = make([][]int, n)
	p.delay = make([][]int, n)
	p.offhours = make([][]int, n)
	p.begin = make([][][]int, n)

	for ri, r := range p.resources {
		p.charge[ri] = make([]int, b.h)
		p.soc[ri] = make([]int, b.h)
		for t := 0; t < b.h; t++ {
			// The battery starts full, charging in the first slot has no effect.
			ub := 1.0
			if t == 0 {
				ub = 0
			}
			p.charge[ri][t] = b.m.AddVar(fmt.Sprintf("charge[%s,%d]", r.ID, t), milp.Binary, 0, ub)
			p.soc[ri][t] = b.m.AddVar(fmt.Sprintf("soc[%s,%d]", r.ID, t), milp.Continuous, 0, r.CapacityKWh)
		}

		acts := p.activities[ri]
		p.engaged[ri] = make([][]int, len(acts))
		p.start[ri] = make([]int, len(acts))
		p.delay[ri] = make([]int, len(acts))
		p.offhours[ri] = make([]int, len(acts))
		p.begin[ri] = make([][]int, len(acts))
		for ai, a := range acts {
			first, last := a.EarliestStart, a.LastStart(b.h)
			row := make([]int, b.h)
			for t := range row {
				row[t] = -1
			}
			for t := first; t < last+a.Duration; t++ {
				row[t] = b.m.AddVar(fmt.Sprintf("engaged[%s,%s,%d]", r.ID, a.ID, t), milp.Binary, 0, 1)
			}
			p.engaged[ri][ai] = row
			p.start[ri][ai] = b.m.AddVar(fmt.Sprintf("start[%s,%s]", r.ID, a.ID), milp.Continuous, float64(first), float64(last))
			p.delay[ri][ai] = b.m.AddVar(fmt.Sprintf("delay[%s,%s]", r.ID, a.ID), milp.Continuous, 0, math.Inf(1))
			p.offhours[ri][ai] = b.m.AddVar(fmt.Sprintf("offhours[%s,%s]", r.ID, a.ID), milp.Continuous, 0, float64(a.Duration))
			if b.opts.Formulation == StartIndexed {
				sel := make([]int, last-first+1)
				for s := first; s <= last; s++ {
					sel[s-first] = b.m.AddVar(fmt.Sprintf("begin[%s,%s,%d]", r.ID, a.ID, s), milp.Binary, 0, 1)
				}
				p.begin[ri][ai] = sel
			}
		}
	}
}

// engagedTerms returns coef*engaged[r,a,t] for every activity that can run
// in slot t.
func (b *builder) engagedTerms(ri, t int, coef float64) []milp.Term {
	var terms []milp.Term
	for ai := range b.p.activities[ri] {
		if v := b.p.engaged[ri][ai][t]; v >= 0 {
			terms = append(terms, milp.Term{Var: v, Coef: coef})
		}
	}
	return terms
}

func (b *builder) reserve(r model.Resource) float64 {
	if r.ReserveFraction > 0 {
		return r.ReserveFraction
	}
	if b.opts.ReserveFraction > 0 {
		return b.opts.ReserveFraction
	}
	return b.snap.Reserve(r)
}

func (b *builder) addBatteryRows(ri int) {
	p := b.p
	r := p.resources[ri]
	soc, charge := p.soc[ri], p.charge[ri]

	b.m.AddConstraint(fmt.Sprintf("soc_init[%s]", r.ID), []milp.Term{{Var: soc[0], Coef: 1}}, milp.EQ, r.CapacityKWh)
	for t := 1; t < b.h; t++ {
		terms := []milp.Term{
			{Var: soc[t], Coef: 1},
			{Var: soc[t-1], Coef: -1},
			{Var: charge[t], Coef: -r.ChargeRateKW},
		}
		terms = append(terms, b.engagedTerms(ri, t, r.ConsumptionKWh)...)
		b.m.AddConstraint(fmt.Sprintf("soc_balance[%s,%d]", r.ID, t), terms, milp.EQ, 0)
	}

	margin := b.reserve(r) * r.CapacityKWh
	for t := 0; t < b.h-1; t++ {
		terms := append([]milp.Term{{Var: soc[t], Coef: 1}}, b.engagedTerms(ri, t+1, -r.ConsumptionKWh)...)
		b.m.AddConstraint(fmt.Sprintf("buffer[%s,%d]", r.ID, t), terms, milp.GE, margin)
	}

	for t := 0; t < b.h; t++ {
		terms := append([]milp.Term{{Var: charge[t], Coef: 1}}, b.engagedTerms(ri, t, 1)...)
		b.m.AddConstraint(fmt.Sprintf("exclusive[%s,%d]", r.ID, t), terms, milp.LE, 1)
	}

	b.m.AddConstraint(fmt.Sprintf("terminal[%s]", r.ID),
		[]milp.Term{{Var: soc[b.h-1], Coef: 1}}, milp.GE, p.target*r.CapacityKWh)
}

func (b *builder) addActivityRows(ri int) {
	p := b.p
	r := p.resources[ri]
	for ai, a := range p.activities[ri] {
		key := r.ID + "," + a.ID
		row := p.engaged[ri][ai]
		start := p.start[ri][ai]

		var total, offHours []milp.Term
		for t, v := range row {
			if v < 0 {
				continue
			}
			total = append(total, milp.Term{Var: v, Coef: 1})
			if !b.snap.IsWork(t) {
				offHours = append(offHours, milp.Term{Var: v, Coef: -1})
			}
		}
		b.m.AddConstraint(fmt.Sprintf("duration[%s]", key), total, milp.EQ, float64(a.Duration))
		b.m.AddConstraint(fmt.Sprintf("delay_def[%s]", key),
			[]milp.Term{{Var: p.delay[ri][ai], Coef: 1}, {Var: start, Coef: -1}},
			milp.GE, float64(a.Duration-a.LatestEnd))
		b.m.AddConstraint(fmt.Sprintf("offhours_def[%s]", key),
			append([]milp.Term{{Var: p.offhours[ri][ai], Coef: 1}}, offHours...), milp.EQ, 0)

		if ai > 0 {
			prev := p.activities[ri][ai-1]
			b.m.AddConstraint(fmt.Sprintf("precedence[%s]", key),
				[]milp.Term{{Var: start, Coef: 1}, {Var: p.start[ri][ai-1], Coef: -1}},
				milp.GE, float64(prev.Duration))
		}

		switch b.opts.Formulation {
		case StartIndexed:
			b.linkStartIndexed(ri, ai, key)
		case BigM:
			b.linkBigM(ri, ai, key)
		}
	}
}

// linkStartIndexed ties engagement to exactly one selected start hour:
// engaged[t] equals the number of selected starts s with s <= t < s+duration.
func (b *builder) linkStartIndexed(ri, ai int, key string) {
	p := b.p
	a := p.activities[ri][ai]
	sel := p.begin[ri][ai]
	first := a.EarliestStart

	choose := make([]milp.Term, len(sel))
	def := []milp.Term{{Var: p.start[ri][ai], Coef: 1}}
	for k, v := range sel {
		choose[k] = milp.Term{Var: v, Coef: 1}
		def = append(def, milp.Term{Var: v, Coef: -float64(first + k)})
	}
	b.m.AddConstraint(fmt.Sprintf("choose[%s]", key), choose, milp.EQ, 1)
	b.m.AddConstraint(fmt.Sprintf("start_def[%s]", key), def, milp.EQ, 0)

	for t, v := range p.engaged[ri][ai] {
		if v < 0 {
			continue
		}
		terms := []milp.Term{{Var: v, Coef: 1}}
		for s := t - a.Duration + 1; s <= t; s++ {
			if k := s - first; k >= 0 && k < len(sel) {
				terms = append(terms, milp.Term{Var: sel[k], Coef: -1})
			}
		}
		b.m.AddConstraint(fmt.Sprintf("cover[%s,%d]", key, t), terms, milp.EQ, 0)
	}
}

// linkBigM forbids engagement before start or at/after start+duration:
//
//	start + M*engaged[t] <= t + M
//	-start + M*engaged[t] <= duration - 1 + M - t
//
// with M equal to the horizon length.
func (b *builder) linkBigM(ri, ai int, key string) {
	p := b.p
	a := p.activities[ri][ai]
	bigM := float64(b.h)
	start := p.start[ri][ai]
	for t, v := range p.engaged[ri][ai] {
		if v < 0 {
			continue
		}
		b.m.AddConstraint(fmt.Sprintf("after_start[%s,%d]", key, t),
			[]milp.Term{{Var: start, Coef: 1}, {Var: v, Coef: bigM}},
			milp.LE, float64(t)+bigM)
		b.m.AddConstraint(fmt.Sprintf("before_end[%s,%d]", key, t),
			[]milp.Term{{Var: start, Coef: -1}, {Var: v, Coef: bigM}},
			milp.LE, float64(a.Duration-1-t)+bigM)
	}
}

func (b *builder) addChargerRows() {
	p := b.p
	for t := 0; t < b.h; t++ {
		terms := make([]milp.Term, len(p.resources))
		for ri := range p.resources {
			terms[ri] = milp.Term{Var: p.charge[ri][t], Coef: 1}
		}
		b.m.AddConstraint(fmt.Sprintf("charger[%d]", t), terms, milp.LE, 1)
	}
}

func (b *builder) addObjective() {
	p := b.p
	pen := b.snap.Penalties()
	for ri, r := range p.resources {
		for t := 0; t < b.h; t++ {
			b.m.AddObjectiveTerm(p.charge[ri][t], b.snap.Price(t)*r.ChargeRateKW)
		}
		for ai := range p.activities[ri] {
			b.m.AddObjectiveTerm(p.delay[ri][ai], pen.DelayPerHour)
			b.m.AddObjectiveTerm(p.offhours[ri][ai], pen.OffHoursPerHour)
		}
	}
}
