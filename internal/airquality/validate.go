package airquality

import (
	"fmt"
	"math"
)

// Validate checks the invariants every emitted measurement must satisfy.
func (m *Measurement) Validate() error {
	if m.Coordinates == nil {
		return fmt.Errorf("%w: %q has no coordinates", ErrUnresolvedLocation, m.Location)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return ErrNonFiniteValue
	}
	if !m.Parameter.IsCanonical() {
		return fmt.Errorf("%w: %q", ErrUnmappedParameter, m.Parameter)
	}

	utc, local, err := m.Date.Instants()
	if err != nil {
		return err
	}
	if !utc.Equal(local) {
		return fmt.Errorf("%w: utc %s and local %s differ", ErrInvalidDate, m.Date.UTC, m.Date.Local)
	}
	return nil
}
