// Package convert performs weight-unit conversion of metal prices via a
// fixed troy-ounce ratio table. Currency is never converted here; it is a
// passthrough tag owned by the upstream source.
package convert

import (
	"fmt"

	"metaltracker/internal/model"
)

// ErrInvalidUnit is returned for a unit code outside the supported set.
// It indicates a programmer or configuration error and is never retried.
var ErrInvalidUnit = fmt.Errorf("invalid weight unit")

// toOunce maps each unit to its troy-ounce equivalent.
var toOunce = map[model.WeightUnit]float64{
	model.TroyOunce: 1,
	model.Gram:      0.0321507466,
	model.Kilogram:  32.1507466,
	model.Tola:      0.375,
}

// Price converts a per-unit price between weight units: normalize to troy
// ounces, then scale to the target unit.
func Price(price float64, from, to model.WeightUnit) (float64, error) {
	fromRatio, ok := toOunce[from]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUnit, from)
	}
	toRatio, ok := toOunce[to]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUnit, to)
	}

	if from != model.TroyOunce {
		price = price / fromRatio
	}
	return price * toRatio, nil
}
