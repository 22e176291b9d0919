package model

// WeightUnit is a supported precious-metal mass unit.
type WeightUnit string

const (
	TroyOunce WeightUnit = "oz"
	Gram      WeightUnit = "g"
	Kilogram  WeightUnit = "kg"
	Tola      WeightUnit = "tola"
)

// WeightUnits lists every supported unit.
var WeightUnits = []WeightUnit{TroyOunce, Gram, Kilogram, Tola}

// Valid reports whether u is a supported weight unit.
func (u WeightUnit) Valid() bool {
	switch u {
	case TroyOunce, Gram, Kilogram, Tola:
		return true
	}
	return false
}

// Currencies is the set of currency codes the upstream sources can quote in.
var Currencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
	"INR": true,
	"NPR": true,
	"AUD": true,
	"CAD": true,
	"CHF": true,
	"JPY": true,
	"CNY": true,
}

// ValidCurrency reports whether code is a supported ISO-4217 currency code.
func ValidCurrency(code string) bool {
	return Currencies[code]
}
