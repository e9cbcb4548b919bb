package airquality

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parameterAliases maps folded source labels onto canonical pollutants.
// Labels are folded by foldLabel before lookup.
var parameterAliases = map[string]Pollutant{
	"pm25":             PollutantPM25,
	"pm10":             PollutantPM10,
	"no2":              PollutantNO2,
	"nitrogendioxide":  PollutantNO2,
	"so2":              PollutantSO2,
	"sulphurdioxide":   PollutantSO2,
	"sulfurdioxide":    PollutantSO2,
	"o3":               PollutantO3,
	"ozone":            PollutantO3,
	"co":               PollutantCO,
	"carbonmonoxide":   PollutantCO,
	"bc":               PollutantBC,
	"blackcarbon":      PollutantBC,
	"no":               PollutantNO,
	"nitricoxide":      PollutantNO,
	"nitrogenmonoxide": PollutantNO,
	"nox":              PollutantNOx,
	"nitrogenoxides":   PollutantNOx,
}

// unitRule converts a folded source unit into a canonical one.
type unitRule struct {
	unit   string
	factor float64
}

var unitRules = map[string]unitRule{
	"ug/m3": {UnitMicrogramsPerCubicMeter, 1},
	"mg/m3": {UnitMilligramsPerCubicMeter, 1},
	"ng/m3": {UnitMicrogramsPerCubicMeter, 0.001},
	"ppm":   {UnitPPM, 1},
	"pphm":  {UnitPPM, 0.01},
	"ppb":   {UnitPPM, 0.001},
	"ppt":   {UnitPPM, 0.000001},
}

var (
	labelFolder = strings.NewReplacer(" ", "", ".", "", "_", "", "-", "", ",", "", "₂", "2", "₃", "3", "ₓ", "x")
	unitFolder  = strings.NewReplacer("µ", "u", "μ", "u", "³", "3", " ", "")
)

func foldLabel(label string) string {
	return labelFolder.Replace(strings.ToLower(strings.TrimSpace(label)))
}

func foldUnit(unit string) string {
	return unitFolder.Replace(strings.ToLower(strings.TrimSpace(unit)))
}

// Normalizer maps source-native labels, units and value text onto the
// canonical vocabulary.
type Normalizer struct {
	// EmptyIsZero treats an empty value cell as an explicit zero. Only sources
	// that document this convention set it; elsewhere empty means missing.
	EmptyIsZero bool
}

// Parameter maps a raw pollutant label to its canonical identifier.
func (n Normalizer) Parameter(label string) (Pollutant, bool) {
	p, ok := parameterAliases[foldLabel(label)]
	return p, ok
}

// Value parses a numeric cell. "null" and, unless EmptyIsZero is set, the
// empty string are treated as missing.
func (n Normalizer) Value(text string) (float64, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "" && n.EmptyIsZero:
		return 0, nil
	case text == "", strings.EqualFold(text, "null"):
		return 0, ErrMissingValue
	}

	v, err := strconv.ParseFloat(strings.Replace(text, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMissingValue, text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNonFiniteValue, text)
	}
	return v, nil
}

// Unit converts value from the source unit to the canonical unit for p.
// Carbon monoxide stays in mg/m³; any other pollutant reported in mg/m³ is
// rescaled to µg/m³.
func (n Normalizer) Unit(value float64, unit string, p Pollutant) (float64, string, error) {
	rule, ok := unitRules[foldUnit(unit)]
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}

	value *= rule.factor
	if rule.unit == UnitMilligramsPerCubicMeter && p != PollutantCO {
		return value * 1000, UnitMicrogramsPerCubicMeter, nil
	}
	return value, rule.unit, nil
}

// Normalize turns a raw reading into a measurement. The caller supplies the
// resolved date and coordinates; a returned error is a soft failure and the
// reading should be dropped.
func (n Normalizer) Normalize(r RawReading, date Date, coords *Coordinates, attribution []Attribution) (Measurement, error) {
	p, ok := n.Parameter(r.Parameter)
	if !ok {
		return Measurement{}, fmt.Errorf("%w: %q", ErrUnmappedParameter, r.Parameter)
	}
	if coords == nil {
		return Measurement{}, fmt.Errorf("%w: %q", ErrUnresolvedLocation, r.Location)
	}

	v, err := n.Value(r.Value)
	if err != nil {
		return Measurement{}, err
	}
	v, unit, err := n.Unit(v, r.Unit, p)
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{
		Location:        strings.TrimSpace(r.Location),
		City:            r.City,
		Coordinates:     coords,
		Parameter:       p,
		Value:           v,
		Unit:            unit,
		Date:            date,
		AveragingPeriod: HourlyAverage,
		Attribution:     attribution,
	}, nil
}
