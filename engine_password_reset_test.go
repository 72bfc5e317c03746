package authkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetRoundTrip(t *testing.T) {
	engine, _, _, mailer := newTestEngine(t, engineTestConfig())

	require.NoError(t, engine.RequestPasswordReset(context.Background(), "alice@example.test"))
	token := mailer.lastResetToken()
	require.Len(t, token, resetSelectorLen+2*resetVerifierBytes)

	userID, err := engine.ValidateResetToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	require.NoError(t, engine.ConfirmPasswordReset(context.Background(), token, "brand-new-password-42"))

	// The new password signs in; the old one does not.
	_, err = engine.Login(context.Background(), "alice@example.test", "correct-password-123", LoginOptions{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	result, err := engine.Login(context.Background(), "alice@example.test", "brand-new-password-42", LoginOptions{})
	require.NoError(t, err)
	assert.Equal(t, LoginStatusFullySignedIn, result.Status)
}

func TestPasswordResetTokenIsSingleUse(t *testing.T) {
	engine, _, _, mailer := newTestEngine(t, engineTestConfig())

	require.NoError(t, engine.RequestPasswordReset(context.Background(), "alice@example.test"))
	token := mailer.lastResetToken()

	require.NoError(t, engine.ConfirmPasswordReset(context.Background(), token, "brand-new-password-42"))
	err := engine.ConfirmPasswordReset(context.Background(), token, "another-new-password-42")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestPasswordResetWrongVerifierRejected(t *testing.T) {
	engine, _, _, mailer := newTestEngine(t, engineTestConfig())

	require.NoError(t, engine.RequestPasswordReset(context.Background(), "alice@example.test"))
	token := mailer.lastResetToken()

	forged := token[:resetSelectorLen] + "0000000000000000000000000000000000000000"
	_, err := engine.ValidateResetToken(context.Background(), forged)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestPasswordResetSecondRequestSupersedesFirst(t *testing.T) {
	engine, _, _, mailer := newTestEngine(t, engineTestConfig())

	require.NoError(t, engine.RequestPasswordReset(context.Background(), "alice@example.test"))
	first := mailer.lastResetToken()
	require.NoError(t, engine.RequestPasswordReset(context.Background(), "alice@example.test"))
	second := mailer.lastResetToken()

	_, err := engine.ValidateResetToken(context.Background(), first)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken, "first request must be dead")
	_, err = engine.ValidateResetToken(context.Background(), second)
	assert.NoError(t, err)
}

func TestPasswordResetExpiredTokenRejected(t *testing.T) {
	engine, _, _, mailer := newTestEngine(t, engineTestConfig())

	require.NoError(t, engine.RequestPasswordReset(context.Background(), "alice@example.test"))
	token := mailer.lastResetToken()

	engine.now = func() time.Time {
		return time.Now().Add(engine.config.PasswordReset.TokenTTL + time.Minute)
	}
	_, err := engine.ValidateResetToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestPasswordResetHidesAccountExistence(t *testing.T) {
	engine, up, _, mailer := newTestEngine(t, engineTestConfig())

	require.NoError(t, engine.RequestPasswordReset(context.Background(), "nobody@example.test"))

	hash, err := engine.passwordHash.Hash("correct-password-123")
	require.NoError(t, err)
	up.addUser(t, &UserRecord{
		ID:           "u8",
		Email:        "unverified@example.test",
		PasswordHash: hash,
	})
	require.NoError(t, engine.RequestPasswordReset(context.Background(), "unverified@example.test"))

	assert.Empty(t, mailer.resetTokens, "no reset mail for unknown or unverified accounts")
}

func TestPasswordResetEnforcesPasswordPolicy(t *testing.T) {
	engine, _, _, mailer := newTestEngine(t, engineTestConfig())

	require.NoError(t, engine.RequestPasswordReset(context.Background(), "alice@example.test"))
	token := mailer.lastResetToken()

	err := engine.ConfirmPasswordReset(context.Background(), token, "short")
	assert.ErrorIs(t, err, ErrPasswordPolicy)

	// A rejected password does not consume the request.
	_, err = engine.ValidateResetToken(context.Background(), token)
	assert.NoError(t, err)
}

func TestPasswordResetRevokesTrustedDevices(t *testing.T) {
	engine, up, _, mailer := newTestEngine(t, engineTestConfig())
	enrollTOTP(t, engine, "u1")

	token, _ := engine.trustedDevices.Mint("u1", 0)

	require.NoError(t, engine.RequestPasswordReset(context.Background(), "alice@example.test"))
	require.NoError(t, engine.ConfirmPasswordReset(context.Background(), mailer.lastResetToken(), "brand-new-password-42"))

	user, err := up.GetUserByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), user.TrustedEpoch)

	ok, err := engine.IsTrustedDevice(context.Background(), "u1", token)
	require.NoError(t, err)
	assert.False(t, ok, "pre-reset trusted token must be dead")
}

// lostConsumeResetProvider answers every consume with not-found, as if a
// concurrent confirm deleted the request between validation and consume.
type lostConsumeResetProvider struct {
	*fakeUserProvider
}

func (p *lostConsumeResetProvider) ConsumeResetRequest(_ context.Context, _ string) (*ResetRequest, error) {
	return nil, ErrTokenNotFound
}

// failingConsumeResetProvider simulates a backend that cannot complete the
// consume at all.
type failingConsumeResetProvider struct {
	*fakeUserProvider
}

func (p *failingConsumeResetProvider) ConsumeResetRequest(_ context.Context, _ string) (*ResetRequest, error) {
	return nil, errBackendDown
}

func TestPasswordResetLosingConsumeRaceDoesNotChangePassword(t *testing.T) {
	engine, up, _, mailer := newTestEngine(t, engineTestConfig())

	require.NoError(t, engine.RequestPasswordReset(context.Background(), "alice@example.test"))
	token := mailer.lastResetToken()

	engine.userProvider = &lostConsumeResetProvider{fakeUserProvider: up}
	err := engine.ConfirmPasswordReset(context.Background(), token, "brand-new-password-42")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	// The loser must not have written the new hash.
	engine.userProvider = up
	result, err := engine.Login(context.Background(), "alice@example.test", "correct-password-123", LoginOptions{})
	require.NoError(t, err)
	assert.Equal(t, LoginStatusFullySignedIn, result.Status)
}

func TestPasswordResetConsumeFailureAbortsInsteadOfLeavingTokenLive(t *testing.T) {
	engine, up, _, mailer := newTestEngine(t, engineTestConfig())

	require.NoError(t, engine.RequestPasswordReset(context.Background(), "alice@example.test"))
	token := mailer.lastResetToken()

	engine.userProvider = &failingConsumeResetProvider{fakeUserProvider: up}
	err := engine.ConfirmPasswordReset(context.Background(), token, "brand-new-password-42")
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	// Nothing was applied and nothing was spent: with the backend healthy
	// again the same token completes exactly once.
	engine.userProvider = up
	require.NoError(t, engine.ConfirmPasswordReset(context.Background(), token, "brand-new-password-42"))
	err = engine.ConfirmPasswordReset(context.Background(), token, "another-new-password-42")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}
