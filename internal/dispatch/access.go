package dispatch

import "crypto/subtle"

// AccessController guards the pipeline with an optional shared secret.
type AccessController struct {
	code []byte
}

// NewAccessController creates a controller. An empty code disables the check.
func NewAccessController(code string) *AccessController {
	return &AccessController{code: []byte(code)}
}

// Enabled reports whether an access code is configured.
func (a *AccessController) Enabled() bool {
	return a != nil && len(a.code) > 0
}

// Authorize reports whether provided matches the configured code exactly.
func (a *AccessController) Authorize(provided string) bool {
	if !a.Enabled() {
		return true
	}
	providedBytes := []byte(provided)
	return len(providedBytes) == len(a.code) && subtle.ConstantTimeCompare(providedBytes, a.code) == 1
}
