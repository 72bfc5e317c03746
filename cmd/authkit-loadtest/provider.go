package main

import (
	"context"
	"strconv"
	"sync"

	"github.com/stdozor/authkit"
	"github.com/stdozor/authkit/password"
)

func hashPassword(cfg authkit.Config, plaintext string) (string, error) {
	hasher, err := password.New(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return "", err
	}
	return hasher.Hash(plaintext)
}

// memoryProvider is a map-backed UserProvider. It exists so the tool can
// drive the engine without a database; it is not a reference storage
// implementation.
type memoryProvider struct {
	mu sync.Mutex

	users       map[string]*authkit.UserRecord
	byEmail     map[string]string
	nextID      int
	backupCodes map[string][]string

	verificationTokens map[[32]byte]*authkit.VerificationToken
	resetRequests      map[string]*authkit.ResetRequest
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{
		users:              map[string]*authkit.UserRecord{},
		byEmail:            map[string]string{},
		backupCodes:        map[string][]string{},
		verificationTokens: map[[32]byte]*authkit.VerificationToken{},
		resetRequests:      map[string]*authkit.ResetRequest{},
	}
}

func (p *memoryProvider) seed(user *authkit.UserRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *user
	p.users[user.ID] = &copied
	p.byEmail[user.Email] = user.ID
}

func (p *memoryProvider) GetUserByEmail(_ context.Context, email string) (*authkit.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byEmail[email]
	if !ok {
		return nil, authkit.ErrUserNotFound
	}
	copied := *p.users[id]
	return &copied, nil
}

func (p *memoryProvider) GetUserByID(_ context.Context, userID string) (*authkit.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return nil, authkit.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (p *memoryProvider) CreateUser(_ context.Context, user *authkit.NewUser) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := "new" + strconv.Itoa(p.nextID)
	p.users[id] = &authkit.UserRecord{
		ID:           id,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		Roles:        user.Roles,
	}
	p.byEmail[user.Email] = id
	return id, nil
}

func (p *memoryProvider) DeleteUnverifiedUser(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byEmail[email]
	if !ok {
		return nil
	}
	if user := p.users[id]; user != nil && !user.Verified {
		delete(p.users, id)
		delete(p.byEmail, email)
	}
	return nil
}

func (p *memoryProvider) UpdatePasswordHash(_ context.Context, userID string, encodedHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return authkit.ErrUserNotFound
	}
	user.PasswordHash = encodedHash
	return nil
}

func (p *memoryProvider) MarkVerified(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return authkit.ErrUserNotFound
	}
	user.Verified = true
	return nil
}

func (p *memoryProvider) SetTOTPSecret(_ context.Context, userID string, secret string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return authkit.ErrUserNotFound
	}
	user.TOTPSecret = secret
	return nil
}

func (p *memoryProvider) ClearTOTPSecret(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return authkit.ErrUserNotFound
	}
	user.TOTPSecret = ""
	return nil
}

func (p *memoryProvider) GetBackupCodeHashes(_ context.Context, userID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.backupCodes[userID]...), nil
}

func (p *memoryProvider) ReplaceBackupCodeHashes(_ context.Context, userID string, hashes []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backupCodes[userID] = append([]string(nil), hashes...)
	return nil
}

func (p *memoryProvider) RemoveBackupCodeHash(_ context.Context, userID string, hash string) (bool, error) {
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

func (p *memoryProvider) IncrementTrustedEpoch(_ context.Context, userID string) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	if !ok {
		return 0, authkit.ErrUserNotFound
	}
	user.TrustedEpoch++
	return user.TrustedEpoch, nil
}

func (p *memoryProvider) SaveVerificationToken(_ context.Context, token *authkit.VerificationToken) error {
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

func (p *memoryProvider) ConsumeVerificationToken(_ context.Context, tokenHash [32]byte) (*authkit.VerificationToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	token, ok := p.verificationTokens[tokenHash]
	if !ok {
		return nil, authkit.ErrTokenNotFound
	}
	delete(p.verificationTokens, tokenHash)
	copied := *token
	return &copied, nil
}

func (p *memoryProvider) ReplaceResetRequest(_ context.Context, request *authkit.ResetRequest) error {
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

func (p *memoryProvider) GetResetRequestBySelector(_ context.Context, selector string) (*authkit.ResetRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	request, ok := p.resetRequests[selector]
	if !ok {
		return nil, authkit.ErrTokenNotFound
	}
	copied := *request
	return &copied, nil
}

func (p *memoryProvider) ConsumeResetRequest(_ context.Context, selector string) (*authkit.ResetRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	request, ok := p.resetRequests[selector]
	if !ok {
		return nil, authkit.ErrTokenNotFound
	}
	delete(p.resetRequests, selector)
	copied := *request
	return &copied, nil
}

func (p *memoryProvider) DeleteResetRequest(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resetRequests, selector)
	return nil
}
