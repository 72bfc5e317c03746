package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/stdozor/authkit/internal"
)

// relyingParty is the delegated ceremony verifier. The production
// implementation is *webauthn.WebAuthn; the engine never reimplements
// attestation or assertion cryptography.
type relyingParty interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
	ValidateDiscoverableLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

func newRelyingParty(cfg WebAuthnConfig) (relyingParty, error) {
	return webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
		Timeouts: webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Enforce: true,
				Timeout: 60 * time.Second,
			},
			Registration: webauthn.TimeoutConfig{
				Enforce: true,
				Timeout: 60 * time.Second,
			},
		},
	})
}

// webauthnUser adapts a UserRecord plus a credential subset to the
// delegated verifier's user contract.
type webauthnUser struct {
	record      *UserRecord
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte {
	return []byte(u.record.ID)
}

func (u *webauthnUser) WebAuthnName() string {
	return u.record.Email
}

func (u *webauthnUser) WebAuthnDisplayName() string {
	if u.record.DisplayName != "" {
		return u.record.DisplayName
	}
	return u.record.Email
}

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func toVerifierCredential(stored *WebAuthnCredential) webauthn.Credential {
	transports := make([]protocol.AuthenticatorTransport, 0, len(stored.Transports))
	for _, t := range stored.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}

	var aaguid []byte
	if parsed, err := uuid.Parse(stored.AAGUID); err == nil {
		aaguid = parsed[:]
	}

	return webauthn.Credential{
		ID:              stored.CredentialID,
		PublicKey:       stored.PublicKey,
		AttestationType: stored.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			BackupEligible: stored.BackupEligible,
			BackupState:    stored.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    aaguid,
			SignCount: stored.SignCount,
		},
	}
}

// WebAuthnRegistrationChallenge defines a public type used by authkit APIs.
//
// WebAuthnRegistrationChallenge instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type WebAuthnRegistrationChallenge struct {
	CeremonyID string
	Options    *protocol.CredentialCreation
}

// WebAuthnAssertionChallenge defines a public type used by authkit APIs.
//
// WebAuthnAssertionChallenge instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type WebAuthnAssertionChallenge struct {
	CeremonyID string
	Options    *protocol.CredentialAssertion
}

func (e *Engine) allowedOrigin(originHost string) bool {
	if originHost == "" {
		return true
	}
	for _, origin := range e.config.WebAuthn.RPOrigins {
		if strings.EqualFold(origin, originHost) {
			return true
		}
	}
	return false
}

func (e *Engine) saveCeremony(ctx context.Context, record *webauthnChallenge, session *webauthn.SessionData) (string, error) {
	encoded, err := json.Marshal(session)
	if err != nil {
		return "", err
	}
	record.Session = encoded
	record.ExpiresAt = e.now().Add(e.config.WebAuthn.ChallengeTTL).Unix()

	ceremonyID, err := internal.NewChallengeID()
	if err != nil {
		return "", err
	}
	if err := e.challengeStore.Save(ctx, ceremonyID, record, e.config.WebAuthn.ChallengeTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ceremonyID, nil
}

func (e *Engine) consumeCeremony(ctx context.Context, ceremonyID string, mode uint8) (*webauthnChallenge, webauthn.SessionData, error) {
	var session webauthn.SessionData

	record, err := e.challengeStore.Consume(ctx, ceremonyID)
	if err != nil {
		if errors.Is(err, errWebauthnChallengeNotFound) {
			return nil, session, ErrNoPendingChallenge
		}
		return nil, session, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if record.Mode != mode {
		return nil, session, ErrNoPendingChallenge
	}
	if err := json.Unmarshal(record.Session, &session); err != nil {
		return nil, session, ErrNoPendingChallenge
	}
	return record, session, nil
}

// BeginWebAuthnRegistration opens a credential creation ceremony. The
// exclusion list only carries credentials of the same role, so a user can
// hold both a passkey and a second-factor key on the same authenticator.
// Passkeys demand a resident key and user verification; second-factor keys
// merely prefer verification.
//
// BeginWebAuthnRegistration may return an error when input validation, dependency calls, or security checks fail.
// BeginWebAuthnRegistration does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BeginWebAuthnRegistration(ctx context.Context, userID string, name string, passkey bool) (*WebAuthnRegistrationChallenge, error) {
	if e == nil || e.relyingParty == nil {
		return nil, ErrEngineNotReady
	}

	name = strings.TrimSpace(name)
	if name == "" || len(name) > e.config.WebAuthn.MaxCredentialName {
		return nil, ErrCredentialNameInvalid
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	sameRole, err := e.credentialProvider.GetCredentialsByUser(ctx, userID, passkey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(sameRole))
	for _, existing := range sameRole {
		exclusions = append(exclusions, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: existing.CredentialID,
		})
	}

	selection := protocol.AuthenticatorSelection{
		ResidentKey:      protocol.ResidentKeyRequirementDiscouraged,
		UserVerification: protocol.VerificationPreferred,
	}
	if passkey {
		selection = protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementRequired,
			UserVerification: protocol.VerificationRequired,
		}
	}

	options, session, err := e.relyingParty.BeginRegistration(
		&webauthnUser{record: user},
		webauthn.WithExclusions(exclusions),
		webauthn.WithAuthenticatorSelection(selection),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithCredentialParameters([]protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	ceremonyID, err := e.saveCeremony(ctx, &webauthnChallenge{
		Mode:      ceremonyRegistration,
		IsPasskey: passkey,
		UserID:    userID,
		Ref:       name,
	}, session)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventWebauthnRegisterRequested, true, userID, nil, func() map[string]string {
		return map[string]string{"passkey": fmt.Sprintf("%t", passkey)}
	})
	return &WebAuthnRegistrationChallenge{CeremonyID: ceremonyID, Options: options}, nil
}

// FinishWebAuthnRegistration verifies the authenticator response and
// persists the credential descriptor. The ceremony state is consumed on
// entry: a replayed finish, successful or not, finds nothing.
//
// FinishWebAuthnRegistration may return an error when input validation, dependency calls, or security checks fail.
// FinishWebAuthnRegistration does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) FinishWebAuthnRegistration(ctx context.Context, ceremonyID string, responseJSON []byte, originHost string) (*WebAuthnCredential, error) {
	if e == nil || e.relyingParty == nil {
		return nil, ErrEngineNotReady
	}

	record, session, err := e.consumeCeremony(ctx, ceremonyID, ceremonyRegistration)
	if err != nil {
		return nil, err
	}

	if !e.allowedOrigin(originHost) {
		e.failWebauthnRegistration(ctx, record.UserID, ErrRegistrationFailed)
		return nil, ErrRegistrationFailed
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(responseJSON))
	if err != nil {
		e.failWebauthnRegistration(ctx, record.UserID, ErrRegistrationFailed)
		return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	user, err := e.userProvider.GetUserByID(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	verified, err := e.relyingParty.CreateCredential(&webauthnUser{record: user}, session, parsed)
	if err != nil {
		e.failWebauthnRegistration(ctx, record.UserID, ErrRegistrationFailed)
		return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	stored := e.storedCredentialFrom(verified, record)
	if err := e.credentialProvider.CreateCredential(ctx, stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metricInc(MetricWebauthnRegistered)
	e.emitAudit(ctx, auditEventWebauthnRegistered, true, record.UserID, nil, func() map[string]string {
		return map[string]string{"passkey": fmt.Sprintf("%t", record.IsPasskey)}
	})
	return stored, nil
}

func (e *Engine) failWebauthnRegistration(ctx context.Context, userID string, err error) {
	e.metricInc(MetricWebauthnRegistrationFailed)
	e.emitAudit(ctx, auditEventWebauthnRegisterFailed, false, userID, err, nil)
}

func (e *Engine) storedCredentialFrom(verified *webauthn.Credential, record *webauthnChallenge) *WebAuthnCredential {
	transports := make([]string, 0, len(verified.Transport))
	for _, t := range verified.Transport {
		transports = append(transports, string(t))
	}

	var aaguid string
	if parsed, err := uuid.FromBytes(verified.Authenticator.AAGUID); err == nil {
		aaguid = parsed.String()
	}

	now := e.now()
	return &WebAuthnCredential{
		UserID:          record.UserID,
		Name:            record.Ref,
		CredentialID:    verified.ID,
		PublicKey:       verified.PublicKey,
		AttestationType: verified.AttestationType,
		Transports:      transports,
		AAGUID:          aaguid,
		SignCount:       verified.Authenticator.SignCount,
		IsPasskey:       record.IsPasskey,
		UserHandle:      []byte(record.UserID),
		BackupEligible:  verified.Flags.BackupEligible,
		BackupState:     verified.Flags.BackupState,
		CreatedAt:       now,
		LastUsedAt:      now,
	}
}

// BeginSecondFactorAssertion opens an assertion ceremony restricted to the
// pending login's second-factor keys.
//
// BeginSecondFactorAssertion may return an error when input validation, dependency calls, or security checks fail.
// BeginSecondFactorAssertion does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BeginSecondFactorAssertion(ctx context.Context, pendingLoginID string) (*WebAuthnAssertionChallenge, error) {
	if e == nil || e.relyingParty == nil {
		return nil, ErrEngineNotReady
	}

	pending, err := e.pendingLoginStore.Get(ctx, pendingLoginID)
	if err != nil {
		return nil, e.failSecondFactorLookup(ctx, err)
	}

	user, err := e.userProvider.GetUserByID(ctx, pending.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	keys, err := e.credentialProvider.GetCredentialsByUser(ctx, user.ID, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, ErrSecondFactorNotEnabled
	}

	credentials := make([]webauthn.Credential, 0, len(keys))
	for _, key := range keys {
		credentials = append(credentials, toVerifierCredential(key))
	}

	options, session, err := e.relyingParty.BeginLogin(
		&webauthnUser{record: user, credentials: credentials},
		webauthn.WithUserVerification(protocol.VerificationPreferred),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssertionFailed, err)
	}

	ceremonyID, err := e.saveCeremony(ctx, &webauthnChallenge{
		Mode:   ceremonySecondFactor,
		UserID: user.ID,
		Ref:    pendingLoginID,
	}, session)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventWebauthnAssertionRequested, true, user.ID, nil, nil)
	return &WebAuthnAssertionChallenge{CeremonyID: ceremonyID, Options: options}, nil
}

// FinishSecondFactorAssertion verifies a second-factor assertion and, on
// success, consumes the bound pending login. The ownership check runs
// before any cryptographic verification: a credential belonging to a
// different user fails with [ErrWrongUser] regardless of the signature.
//
// FinishSecondFactorAssertion may return an error when input validation, dependency calls, or security checks fail.
// FinishSecondFactorAssertion does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) FinishSecondFactorAssertion(
	ctx context.Context,
	ceremonyID string,
	responseJSON []byte,
	originHost string,
	opts SecondFactorOptions,
) (*LoginResult, error) {
	if e == nil || e.relyingParty == nil {
		return nil, ErrEngineNotReady
	}

	record, session, err := e.consumeCeremony(ctx, ceremonyID, ceremonySecondFactor)
	if err != nil {
		return nil, err
	}

	if !e.allowedOrigin(originHost) {
		e.failWebauthnAssertion(ctx, record.UserID, ErrAssertionFailed)
		return nil, ErrAssertionFailed
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(responseJSON))
	if err != nil {
		e.failWebauthnAssertion(ctx, record.UserID, ErrAssertionFailed)
		return nil, fmt.Errorf("%w: %v", ErrAssertionFailed, err)
	}

	stored, err := e.credentialProvider.GetCredentialByID(ctx, parsed.RawID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			e.failWebauthnAssertion(ctx, record.UserID, ErrUnknownCredential)
			return nil, ErrUnknownCredential
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if stored.UserID != record.UserID {
		e.failWebauthnAssertion(ctx, record.UserID, ErrWrongUser)
		return nil, ErrWrongUser
	}

	user, err := e.userProvider.GetUserByID(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	keys, err := e.credentialProvider.GetCredentialsByUser(ctx, user.ID, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	credentials := make([]webauthn.Credential, 0, len(keys))
	for _, key := range keys {
		credentials = append(credentials, toVerifierCredential(key))
	}

	verified, err := e.relyingParty.ValidateLogin(
		&webauthnUser{record: user, credentials: credentials},
		session,
		parsed,
	)
	if err != nil {
		e.failWebauthnAssertion(ctx, user.ID, ErrAssertionFailed)
		return nil, fmt.Errorf("%w: %v", ErrAssertionFailed, err)
	}

	if err := e.acceptAssertion(ctx, user.ID, verified); err != nil {
		return nil, err
	}

	e.metricInc(MetricWebauthnAssertionSuccess)
	e.emitAudit(ctx, auditEventWebauthnAssertionSuccess, true, user.ID, nil, nil)

	return e.completeSecondFactor(ctx, record.Ref, user, opts)
}

// acceptAssertion applies the clone-detection policy and persists the new
// signature counter. Counter-less authenticators report zero on both sides
// and are allowed; a stuck or regressed counter anywhere else means the
// key material may exist twice, which is a hard failure.
func (e *Engine) acceptAssertion(ctx context.Context, userID string, verified *webauthn.Credential) error {
	if verified.Authenticator.CloneWarning {
		e.metricInc(MetricWebauthnCloneDetected)
		e.emitAudit(ctx, auditEventWebauthnCloneDetected, false, userID, ErrAssertionFailed, nil)
		return ErrAssertionFailed
	}

	if err := e.credentialProvider.UpdateSignCount(ctx, verified.ID, verified.Authenticator.SignCount); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}

func (e *Engine) failWebauthnAssertion(ctx context.Context, userID string, err error) {
	e.metricInc(MetricWebauthnAssertionFailed)
	e.emitAudit(ctx, auditEventWebauthnAssertionFailed, false, userID, err, nil)
}

// BeginPasskeyLogin opens a usernameless assertion ceremony: the allow
// list is empty and the browser offers whatever discoverable credentials
// it holds for this relying party. User verification is required, since
// the passkey stands in for both factors.
//
// BeginPasskeyLogin may return an error when input validation, dependency calls, or security checks fail.
// BeginPasskeyLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BeginPasskeyLogin(ctx context.Context) (*WebAuthnAssertionChallenge, error) {
	if e == nil || e.relyingParty == nil {
		return nil, ErrEngineNotReady
	}

	options, session, err := e.relyingParty.BeginDiscoverableLogin(
		webauthn.WithUserVerification(protocol.VerificationRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssertionFailed, err)
	}

	ceremonyID, err := e.saveCeremony(ctx, &webauthnChallenge{
		Mode:      ceremonyPasskeyLogin,
		IsPasskey: true,
	}, session)
	if err != nil {
		return nil, err
	}

	return &WebAuthnAssertionChallenge{CeremonyID: ceremonyID, Options: options}, nil
}

// FinishPasskeyLogin completes a usernameless sign-in. The credential is
// mapped back to its owner; an unverified account is rejected with
// [ErrInvalidCredentials] just like the password path.
//
// FinishPasskeyLogin may return an error when input validation, dependency calls, or security checks fail.
// FinishPasskeyLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) FinishPasskeyLogin(ctx context.Context, ceremonyID string, responseJSON []byte, originHost string) (*LoginResult, error) {
	if e == nil || e.relyingParty == nil {
		return nil, ErrEngineNotReady
	}

	_, session, err := e.consumeCeremony(ctx, ceremonyID, ceremonyPasskeyLogin)
	if err != nil {
		return nil, err
	}

	if !e.allowedOrigin(originHost) {
		e.failPasskeyLogin(ctx, "", ErrAssertionFailed)
		return nil, ErrAssertionFailed
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(responseJSON))
	if err != nil {
		e.failPasskeyLogin(ctx, "", ErrAssertionFailed)
		return nil, fmt.Errorf("%w: %v", ErrAssertionFailed, err)
	}

	var (
		owner     *UserRecord
		lookupErr error
	)
	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		stored, err := e.credentialProvider.GetCredentialByID(ctx, rawID)
		if err != nil {
			if errors.Is(err, ErrCredentialNotFound) {
				lookupErr = ErrUnknownCredential
			} else {
				lookupErr = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
			}
			return nil, lookupErr
		}
		if !stored.IsPasskey {
			lookupErr = ErrUnknownCredential
			return nil, lookupErr
		}

		user, err := e.userProvider.GetUserByID(ctx, stored.UserID)
		if err != nil {
			lookupErr = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
			return nil, lookupErr
		}

		owner = user
		return &webauthnUser{
			record:      user,
			credentials: []webauthn.Credential{toVerifierCredential(stored)},
		}, nil
	}

	verified, err := e.relyingParty.ValidateDiscoverableLogin(handler, session, parsed)
	if err != nil {
		if lookupErr != nil {
			e.failPasskeyLogin(ctx, "", lookupErr)
			return nil, lookupErr
		}
		userID := ""
		if owner != nil {
			userID = owner.ID
		}
		e.failPasskeyLogin(ctx, userID, ErrAssertionFailed)
		return nil, fmt.Errorf("%w: %v", ErrAssertionFailed, err)
	}

	if err := e.acceptAssertion(ctx, owner.ID, verified); err != nil {
		return nil, err
	}

	if !owner.Verified {
		e.failPasskeyLogin(ctx, owner.ID, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	e.metricInc(MetricPasskeyLoginSuccess)
	e.emitAudit(ctx, auditEventPasskeyLoginSuccess, true, owner.ID, nil, nil)
	return &LoginResult{Status: LoginStatusFullySignedIn, User: owner}, nil
}

func (e *Engine) failPasskeyLogin(ctx context.Context, userID string, err error) {
	e.metricInc(MetricPasskeyLoginFailure)
	e.emitAudit(ctx, auditEventPasskeyLoginFailure, false, userID, err, nil)
}

// ListWebAuthnCredentials returns the user's credentials, passkeys first.
//
// ListWebAuthnCredentials may return an error when input validation, dependency calls, or security checks fail.
// ListWebAuthnCredentials does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ListWebAuthnCredentials(ctx context.Context, userID string) ([]*WebAuthnCredential, error) {
	if e == nil || e.credentialProvider == nil {
		return nil, ErrEngineNotReady
	}

	passkeys, err := e.credentialProvider.GetCredentialsByUser(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	keys, err := e.credentialProvider.GetCredentialsByUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return append(passkeys, keys...), nil
}

// RemoveWebAuthnCredential deletes one of the user's credentials. The
// provider scopes the delete by user ID, so a credential ID alone cannot
// remove someone else's key.
//
// RemoveWebAuthnCredential may return an error when input validation, dependency calls, or security checks fail.
// RemoveWebAuthnCredential does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RemoveWebAuthnCredential(ctx context.Context, userID string, credentialID []byte) error {
	if e == nil || e.credentialProvider == nil {
		return ErrEngineNotReady
	}

	if err := e.credentialProvider.DeleteCredential(ctx, userID, credentialID); err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrUnknownCredential
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.emitAudit(ctx, auditEventCredentialRemoved, true, userID, nil, nil)
	return nil
}
