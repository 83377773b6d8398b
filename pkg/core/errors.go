// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRenderCapability means a group declares no icon, pin colour or fill colour
	ErrNoRenderCapability = errors.New("no recognized render capability")
	// ErrMalformedCRS means the coordinate rectangle cannot produce a scale
	ErrMalformedCRS = errors.New("malformed coordinate rectangle")
)

// ConfigurationError is a construction-time failure of one configured unit
type ConfigurationError struct {
	Unit string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Unit, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
