package domain

import "math"

// CelsiusToFahrenheit converts degrees Celsius to degrees Fahrenheit.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts degrees Fahrenheit to degrees Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// MillimetersToInches converts millimeters to inches.
func MillimetersToInches(mm float64) float64 {
	return mm / 25.4
}

// InchesToMillimeters converts inches to millimeters.
func InchesToMillimeters(in float64) float64 {
	return in * 25.4
}

// Precision sets the number of decimals kept for display values.
type Precision struct {
	TempDecimals   int
	PrecipDecimals int
}

// DefaultPrecision rounds to whole degrees Fahrenheit and tenths of an inch.
var DefaultPrecision = Precision{TempDecimals: 0, PrecipDecimals: 1}

// Round rounds v to the given number of decimals, halves away from zero.
// Values that round to zero from below come back as +0, not -0.
func Round(v float64, decimals int) float64 {
	var r float64
	if decimals <= 0 {
		r = math.Round(v)
	} else {
		p := math.Pow10(decimals)
		r = math.Round(v*p) / p
	}
	if r == 0 {
		return 0
	}
	return r
}

func convertTemp(c *float64, decimals int) *float64 {
	if c == nil || math.IsNaN(*c) {
		return nil
	}
	f := Round(CelsiusToFahrenheit(*c), decimals)
	return &f
}

func convertPrecip(mm *float64, decimals int) *float64 {
	if mm == nil || math.IsNaN(*mm) {
		return nil
	}
	in := Round(MillimetersToInches(*mm), decimals)
	return &in
}
