package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/bluecollar-client/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const tokenLength = 32 // 32 bytes = 256 bits

// Manager handles refresh credential creation, validation and rotation
type Manager struct {
	repo   Repo
	expiry time.Duration
	rotate bool
}

// NewManager creates a new refresh credential manager. When rotate is set a
// successful exchange replaces the refresh credential as well.
func NewManager(repo Repo, expiry time.Duration, rotate bool) *Manager {
	return &Manager{
		repo:   repo,
		expiry: expiry,
		rotate: rotate,
	}
}

// Create generates a new refresh credential for the user and stores it
func (m *Manager) Create(userID string) (string, error) {
	// single refresh credential per user
	if existingToken, err := m.repo.GetByUserID(userID); err == nil && existingToken != nil {
		if err := m.repo.Delete(existingToken.Token); err != nil {
			return "", fmt.Errorf("failed to delete existing refresh token: %w", err)
		}
	}

	tokenBytes := make([]byte, tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    NowTimeFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return tokenStr, nil
}

// Exchange validates a refresh credential and returns its owner. The second
// return value is the rotated credential, empty when rotation is off.
func (m *Manager) Exchange(token string) (*StoredRefreshToken, string, error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, "", apperrors.Wrapf(apperrors.ErrInvalidToken, "refresh token")
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return nil, "", apperrors.Wrapf(apperrors.ErrTokenExpired, "refresh token")
	}
	if !m.rotate {
		return rt, "", nil
	}
	rotated, err := m.Create(rt.UserID)
	if err != nil {
		return nil, "", err
	}
	return rt, rotated, nil
}

// Delete removes a refresh credential from storage
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// IsExpired checks if a refresh credential has outlived the manager's expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	if m.expiry <= 0 {
		return false
	}
	return NowTimeFunc().Sub(rt.Iat) > m.expiry
}
