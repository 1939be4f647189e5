//go:build !linux && !windows

package limits

import (
	"aibugbench/internal/sandbox/spec"
	appErr "aibugbench/pkg/errors"
)

// New has no hard-cap mechanism on this platform; callers fall back to the
// watchdog limiter and surface the reduced guarantee.
func New(cfg Config, lim spec.ResourceLimit) (Limiter, error) {
	return nil, appErr.New(appErr.FeatureUnavailable).
		WithMessage("no hard resource-limit mechanism on this platform")
}
