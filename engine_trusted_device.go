package authkit

import (
	"context"
	"fmt"
)

// RevokeTrustedDevices advances the user's trusted-device epoch. Every
// outstanding remember-this-device token becomes invalid in a single O(1)
// write; no per-device bookkeeping exists to clean up.
//
// RevokeTrustedDevices may return an error when input validation, dependency calls, or security checks fail.
// RevokeTrustedDevices does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeTrustedDevices(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if _, err := e.userProvider.IncrementTrustedEpoch(ctx, userID); err != nil {
		e.emitAudit(ctx, auditEventTrustedDevicesRevoked, false, userID, ErrProviderUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metricInc(MetricTrustedDevicesRevoked)
	e.emitAudit(ctx, auditEventTrustedDevicesRevoked, true, userID, nil, nil)
	return nil
}

// IsTrustedDevice reports whether token currently satisfies the second
// factor for the given user.
//
// IsTrustedDevice may return an error when input validation, dependency calls, or security checks fail.
// IsTrustedDevice does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IsTrustedDevice(ctx context.Context, userID string, token string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return e.trustedDevices.Validate(token, user.ID, user.TrustedEpoch), nil
}
