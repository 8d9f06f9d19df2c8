// Package domain models monthly climate normals for a list of cities.
//
// # Record Lifecycle
//
// Each [CityRecord] starts from one row of the input city list and moves
// through a fixed sequence of stages:
//
//	Unlocated → Located → Enriched → Exported
//
// A record without coordinates is located by a [Geocoder]. A located record is
// enriched with [Normals] from a [NormalsSource] and converted to display
// units by [ConvertNormals]. A record that fails any stage stays where it
// stalled and is left out of every exported artifact. Climate data is never
// attached to a record without a location.
//
// # Units
//
// Providers report temperature in degrees Celsius and precipitation in
// millimeters. Exported values are degrees Fahrenheit and inches:
//
//	F  = C * 9/5 + 32
//	in = mm / 25.4
//
// Display rounding defaults to whole degrees Fahrenheit and tenths of an inch
// (see [DefaultPrecision]); halves round away from zero.
//
// # Months
//
// Monthly series are indexed January through December and keyed by the
// three-letter English abbreviations in [Months] wherever they are
// serialized. JSON output always lists months in calendar order so repeated
// runs over the same input produce identical bytes.
//
// # Failures
//
// Failures are classified by the sentinel errors in errors.go. None of them
// is fatal to a run; [FailureReason] turns them into stable labels for logs
// and metrics.
package domain
