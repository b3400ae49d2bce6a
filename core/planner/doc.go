// Package planner translates a parameter snapshot and an end-of-horizon
// state-of-charge target into a mixed-integer linear model.
//
// The builder never solves anything: it emits variables, rows and the cost
// objective into a milp.Model and records index tables so solved
// assignments can be decoded back into per-resource schedules.
//
// The rule "a resource is engaged in an activity only inside
// [start, start+duration)" is disjunctive. Two linear encodings are
// available: StartIndexed selects exactly one start hour per activity and
// derives engagement from the selected start, BigM bounds the distance
// between each engaged hour and a continuous start variable. Both admit a
// single contiguous block of engagement per activity.
package planner
