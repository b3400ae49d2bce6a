package model

import (
	"fmt"
	"strings"
	"unicode"
)

// idReserved holds the characters used to compose variable names and
// activity keys; identifiers must not contain them.
const idReserved = ",/[]"

// CheckID rejects identifiers that are empty or would make composed names
// ambiguous.
func CheckID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s id is required", kind)
	}
	if i := strings.IndexAny(id, idReserved); i >= 0 {
		return fmt.Errorf("%s id %q: character %q is reserved", kind, id, id[i])
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%s id %q must not contain spaces", kind, id)
	}
	return nil
}

// Resource represents a battery-powered unit of the fleet. Energy values are
// expressed in kWh and power in kW; one time slot lasts one hour.
type Resource struct {
	ID             string  `json:"id" yaml:"id"`
	CapacityKWh    float64 `json:"capacity_kwh" yaml:"capacity_kwh"`       // usable battery capacity
	ChargeRateKW   float64 `json:"charge_rate_kw" yaml:"charge_rate_kw"`   // power drawn while charging
	ConsumptionKWh float64 `json:"consumption_kwh" yaml:"consumption_kwh"` // energy used per engaged hour

	// ReserveFraction overrides the global forward reserve margin for this
	// resource. Zero keeps the global value.
	ReserveFraction float64 `json:"reserve_fraction,omitempty" yaml:"reserve_fraction,omitempty"`
}

// Validate checks that the resource configuration is sound.
func (r Resource) Validate() error {
	if err := CheckID("resource", r.ID); err != nil {
		return err
	}
	if r.CapacityKWh <= 0 {
		return fmt.Errorf("resource %s: capacity must be positive", r.ID)
	}
	if r.ChargeRateKW <= 0 {
		return fmt.Errorf("resource %s: charge rate must be positive", r.ID)
	}
	if r.ConsumptionKWh < 0 {
		return fmt.Errorf("resource %s: consumption must not be negative", r.ID)
	}
	if r.ReserveFraction < 0 || r.ReserveFraction >= 1 {
		return fmt.Errorf("resource %s: reserve fraction must be in [0,1)", r.ID)
	}
	return nil
}

// EnergyPerSlot returns the energy added to the battery by one hour of
// charging.
func (r Resource) EnergyPerSlot() float64 { return r.ChargeRateKW }
