package resilience

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen matches circuit-open rejections via errors.Is.
	ErrCircuitOpen = errors.New("resilience: circuit breaker open")
	// ErrBreakerExists indicates a breaker was already created under the name
	// being configured.
	ErrBreakerExists = errors.New("resilience: breaker already created")
)

// OpenError reports a call rejected because the named breaker is open or at
// half-open capacity. The protected operation was never invoked.
type OpenError struct {
	Breaker string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("resilience: circuit breaker %q is open", e.Breaker)
}

// Is matches the ErrCircuitOpen sentinel so callers can branch with errors.Is.
func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}
