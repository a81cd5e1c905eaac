package mrs

import (
	"fmt"
	"math"
	"strings"
)

// ConfigurationError reports a malformed or contradictory mission table.
// It is raised by the validation pass, before any propagation starts.
type ConfigurationError struct {
	Component string  // e.g. "guidance", "segments", "vehicle"
	MET       float64 // offending MET, NaN when not applicable
	Field     string
	Reason    string
	Err       error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "configuration error in %s", e.Component)
	if e.Field != "" {
		fmt.Fprintf(&b, " (%s)", e.Field)
	}
	if !math.IsNaN(e.MET) {
		fmt.Fprintf(&b, " at MET %g", e.MET)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// confErr builds a ConfigurationError.
func confErr(component string, met float64, field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Component: component, MET: met, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationErrors aggregates all the problems found by one validation pass.
type ConfigurationErrors []*ConfigurationError

// Error implements the error interface.
func (errs ConfigurationErrors) Error() string {
	switch len(errs) {
	case 0:
		return "no configuration error"
	case 1:
		return errs[0].Error()
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d configuration errors:\n\t%s", len(errs), strings.Join(msgs, "\n\t"))
}

// Unwrap allows errors.As to find each ConfigurationError.
func (errs ConfigurationErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// orNil returns nil for an empty set so that callers can return it as an error.
func (errs ConfigurationErrors) orNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// NumericalError aborts a run: step size underflow or a non-finite state.
type NumericalError struct {
	Component string
	MET       float64
	Reason    string
	LastState State // last valid state
}

// Error implements the error interface.
func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error in %s at MET %g: %s", e.Component, e.MET, e.Reason)
}
