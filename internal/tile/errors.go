package tile

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid TilingConfiguration field. It
// is fatal and non-retryable.
type ConfigurationError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid tiling configuration: %s=%d (%s)", e.Field, e.Value, e.Reason)
}

// UnsupportedFeatureError marks a transform path that is deliberately
// unimplemented. The pipeline fails fast rather than producing an
// incorrect kernel, and the autotuner aborts the whole run when it
// sees one.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported transform path: %s", e.Feature)
}

// StructuralAssumptionError reports a descriptor or kernel shape that
// violates the single-field, six-stage assumption.
type StructuralAssumptionError struct {
	Reason string
}

func (e *StructuralAssumptionError) Error() string {
	return fmt.Sprintf("kernel structure violates pipeline assumptions: %s", e.Reason)
}

// IsUnsupported reports whether err is (or wraps) an
// UnsupportedFeatureError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedFeatureError
	return errors.As(err, &ue)
}
