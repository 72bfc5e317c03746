package authkit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChangePasswordRoundTrip(t *testing.T) {
	engine, up, _, _ := newTestEngine(t, engineTestConfig())
	ctx := context.Background()

	if err := engine.ChangePassword(ctx, "u1", "correct-password-123", "fresh-password-456"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := engine.Login(ctx, "alice@example.test", "correct-password-123", LoginOptions{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password dead, got %v", err)
	}
	result, err := engine.Login(ctx, "alice@example.test", "fresh-password-456", LoginOptions{})
	if err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if result.Status != LoginStatusFullySignedIn {
		t.Fatalf("unexpected status %d", result.Status)
	}

	user, err := up.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.TrustedEpoch != 1 {
		t.Fatalf("expected trusted epoch bumped to 1, got %d", user.TrustedEpoch)
	}
}

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, engineTestConfig())

	err := engine.ChangePassword(context.Background(), "u1", "not-the-password", "fresh-password-456")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordEnforcesPolicy(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, engineTestConfig())

	err := engine.ChangePassword(context.Background(), "u1", "correct-password-123", "short")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}

	// A rejected change leaves the old password working.
	if _, err := engine.Login(context.Background(), "alice@example.test", "correct-password-123", LoginOptions{}); err != nil {
		t.Fatalf("old password should survive a rejected change: %v", err)
	}
}

func TestChangePasswordUnknownUser(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, engineTestConfig())

	err := engine.ChangePassword(context.Background(), "u404", "whatever-password", "fresh-password-456")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestChangePasswordRevokesTrustedDevices(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, engineTestConfig())
	ctx := context.Background()
	secret, _ := enrollTOTP(t, engine, "u1")
	pendingLoginID := pendingLoginFor(t, engine)

	code := codeForSecret(t, engine.config.TOTP, secret, time.Now())
	result, err := engine.VerifySecondFactor(ctx, pendingLoginID, code, SecondFactorOptions{TrustDevice: true})
	if err != nil {
		t.Fatalf("VerifySecondFactor failed: %v", err)
	}
	if result.TrustedDeviceToken == "" {
		t.Fatal("expected a trusted-device token")
	}

	if err := engine.ChangePassword(ctx, "u1", "correct-password-123", "fresh-password-456"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	trusted, err := engine.IsTrustedDevice(ctx, "u1", result.TrustedDeviceToken)
	if err != nil {
		t.Fatalf("IsTrustedDevice failed: %v", err)
	}
	if trusted {
		t.Fatal("expected trusted-device token revoked after password change")
	}
}
