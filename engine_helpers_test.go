package authkit

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var errBackendDown = errors.New("backend down")

type fakeUserProvider struct {
	mu sync.Mutex

	users       map[string]*UserRecord
	nextID      int
	backupCodes map[string][]string

	verificationTokens map[[32]byte]*VerificationToken
	resetRequests      map[string]*ResetRequest

	failGetByEmail bool
}

func newFakeUserProvider() *fakeUserProvider {
	return &fakeUserProvider{
		// The seeded test user takes "u1"; created accounts start at "u2".
		nextID:             1,
		users:              map[string]*UserRecord{},
		backupCodes:        map[string][]string{},
		verificationTokens: map[[32]byte]*VerificationToken{},
		resetRequests:      map[string]*ResetRequest{},
	}
}

func (p *fakeUserProvider) addUser(t *testing.T, user *UserRecord) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *user
	p.users[user.ID] = &copied
}

func (p *fakeUserProvider) GetUserByEmail(_ context.Context, email string) (*UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failGetByEmail {
		return nil, errBackendDown
	}
	for _, user := range p.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (p *fakeUserProvider) GetUserByID(_ context.Context, userID string) (*UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (p *fakeUserProvider) CreateUser(_ context.Context, user *NewUser) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := "u" + strconv.Itoa(p.nextID)
	p.users[id] = &UserRecord{
		ID:           id,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		Roles:        user.Roles,
	}
	return id, nil
}

func (p *fakeUserProvider) DeleteUnverifiedUser(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, user := range p.users {
		if user.Email == email && !user.Verified {
			delete(p.users, id)
		}
	}
	return nil
}

func (p *fakeUserProvider) UpdatePasswordHash(_ context.Context, userID string, encodedHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = encodedHash
	return nil
}

func (p *fakeUserProvider) MarkVerified(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Verified = true
	return nil
}

func (p *fakeUserProvider) SetTOTPSecret(_ context.Context, userID string, secret string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.TOTPSecret = secret
	return nil
}

func (p *fakeUserProvider) ClearTOTPSecret(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.TOTPSecret = ""
	return nil
}

func (p *fakeUserProvider) GetBackupCodeHashes(_ context.Context, userID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.backupCodes[userID]...), nil
}

func (p *fakeUserProvider) ReplaceBackupCodeHashes(_ context.Context, userID string, hashes []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backupCodes[userID] = append([]string(nil), hashes...)
	return nil
}

func (p *fakeUserProvider) RemoveBackupCodeHash(_ context.Context, userID string, hash string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hashes := p.backupCodes[userID]
	for i, h := range hashes {
		if h == hash {
			p.backupCodes[userID] = append(hashes[:i:i], hashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (p *fakeUserProvider) IncrementTrustedEpoch(_ context.Context, userID string) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	user.TrustedEpoch++
	return user.TrustedEpoch, nil
}

func (p *fakeUserProvider) SaveVerificationToken(_ context.Context, token *VerificationToken) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for hash, existing := range p.verificationTokens {
		if existing.UserID == token.UserID {
			delete(p.verificationTokens, hash)
		}
	}
	copied := *token
	p.verificationTokens[token.TokenHash] = &copied
	return nil
}

func (p *fakeUserProvider) ConsumeVerificationToken(_ context.Context, tokenHash [32]byte) (*VerificationToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	token, ok := p.verificationTokens[tokenHash]
	if !ok {
		return nil, ErrTokenNotFound
	}
	delete(p.verificationTokens, tokenHash)
	return token, nil
}

func (p *fakeUserProvider) ReplaceResetRequest(_ context.Context, request *ResetRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for selector, existing := range p.resetRequests {
		if existing.UserID == request.UserID {
			delete(p.resetRequests, selector)
		}
	}
	copied := *request
	p.resetRequests[request.Selector] = &copied
	return nil
}

func (p *fakeUserProvider) GetResetRequestBySelector(_ context.Context, selector string) (*ResetRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	request, ok := p.resetRequests[selector]
	if !ok {
		return nil, ErrTokenNotFound
	}
	copied := *request
	return &copied, nil
}

func (p *fakeUserProvider) ConsumeResetRequest(_ context.Context, selector string) (*ResetRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	request, ok := p.resetRequests[selector]
	if !ok {
		return nil, ErrTokenNotFound
	}
	delete(p.resetRequests, selector)
	copied := *request
	return &copied, nil
}

func (p *fakeUserProvider) DeleteResetRequest(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resetRequests, selector)
	return nil
}

type fakeCredentialProvider struct {
	mu          sync.Mutex
	credentials []*WebAuthnCredential
}

func newFakeCredentialProvider() *fakeCredentialProvider {
	return &fakeCredentialProvider{}
}

func (p *fakeCredentialProvider) CreateCredential(_ context.Context, credential *WebAuthnCredential) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *credential
	p.credentials = append(p.credentials, &copied)
	return nil
}

func (p *fakeCredentialProvider) GetCredentialByID(_ context.Context, credentialID []byte) (*WebAuthnCredential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, credential := range p.credentials {
		if bytes.Equal(credential.CredentialID, credentialID) {
			copied := *credential
			return &copied, nil
		}
	}
	return nil, ErrCredentialNotFound
}

func (p *fakeCredentialProvider) GetCredentialsByUser(_ context.Context, userID string, passkey bool) ([]*WebAuthnCredential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*WebAuthnCredential
	for _, credential := range p.credentials {
		if credential.UserID == userID && credential.IsPasskey == passkey {
			copied := *credential
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (p *fakeCredentialProvider) UpdateSignCount(_ context.Context, credentialID []byte, count uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, credential := range p.credentials {
		if bytes.Equal(credential.CredentialID, credentialID) {
			credential.SignCount = count
			credential.LastUsedAt = time.Now()
			return nil
		}
	}
	return ErrCredentialNotFound
}

func (p *fakeCredentialProvider) DeleteCredential(_ context.Context, userID string, credentialID []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, credential := range p.credentials {
		if credential.UserID == userID && bytes.Equal(credential.CredentialID, credentialID) {
			p.credentials = append(p.credentials[:i], p.credentials[i+1:]...)
			return nil
		}
	}
	return ErrCredentialNotFound
}

type recordingMailer struct {
	mu                 sync.Mutex
	verificationTokens []string
	resetTokens        []string
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, _ string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verificationTokens = append(m.verificationTokens, token)
	return nil
}

func (m *recordingMailer) SendPasswordResetEmail(_ context.Context, _ string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens = append(m.resetTokens, token)
	return nil
}

func (m *recordingMailer) lastVerificationToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.verificationTokens) == 0 {
		return ""
	}
	return m.verificationTokens[len(m.verificationTokens)-1]
}

func (m *recordingMailer) lastResetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetTokens) == 0 {
		return ""
	}
	return m.resetTokens[len(m.resetTokens)-1]
}

func engineTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.MinLength = 8
	cfg.BackupCodes.HashCost = 4
	cfg.TOTP.Issuer = "authkit-test"
	cfg.TrustedDevice.Secret = bytes.Repeat([]byte("s"), 32)
	cfg.BreachCheck.Enabled = false
	cfg.WebAuthn.RPID = "example.test"
	cfg.WebAuthn.RPDisplayName = "Example"
	cfg.WebAuthn.RPOrigins = []string{"https://example.test"}
	return cfg
}

func newEngineRedis(t *testing.T) *redis.Client {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// newTestEngine builds an engine against miniredis, a fake user provider,
// and a recording mailer, and seeds one verified user "u1".
func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeUserProvider, *fakeCredentialProvider, *recordingMailer) {
	t.Helper()

	up := newFakeUserProvider()
	cp := newFakeCredentialProvider()
	mailer := &recordingMailer{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(newEngineRedis(t)).
		WithUserProvider(up).
		WithCredentialProvider(cp).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	hash, err := engine.passwordHash.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	up.addUser(t, &UserRecord{
		ID:           "u1",
		Email:        "alice@example.test",
		DisplayName:  "Alice",
		PasswordHash: hash,
		Roles:        []Role{RoleUser},
		Verified:     true,
	})
	return engine, up, cp, mailer
}
