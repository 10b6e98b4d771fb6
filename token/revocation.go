package token

import (
	"sync"
	"time"
)

// AccessLedger tracks the access credentials a backend has issued, by jti,
// and which of them have been revoked before their exp. Entries are kept
// only until the credential would have expired anyway.
type AccessLedger struct {
	mu      sync.RWMutex
	issued  map[string]time.Time // jti to exp
	revoked map[string]time.Time
}

func NewAccessLedger() *AccessLedger {
	return &AccessLedger{
		issued:  make(map[string]time.Time),
		revoked: make(map[string]time.Time),
	}
}

// Issued records a newly signed access credential.
func (l *AccessLedger) Issued(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued[claims.ID] = exp
}

// Revoke invalidates one credential. Unknown ids are revoked until now+ttl.
func (l *AccessLedger) Revoke(jti string, now time.Time, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.issued[jti]
	if !ok {
		exp = now.Add(ttl)
	}
	delete(l.issued, jti)
	l.revoked[jti] = exp
}

// RevokeAll invalidates every credential issued so far and reports how many
// were still live.
func (l *AccessLedger) RevokeAll(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	live := 0
	for jti, exp := range l.issued {
		if exp.IsZero() || now.Before(exp) {
			l.revoked[jti] = exp
			live++
		}
	}
	l.issued = make(map[string]time.Time)
	l.cleanupLocked(now)
	return live
}

func (l *AccessLedger) IsRevoked(jti string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, revoked := l.revoked[jti]
	return revoked
}

// Cleanup drops entries whose credential has expired.
func (l *AccessLedger) Cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanupLocked(now)
}

func (l *AccessLedger) cleanupLocked(now time.Time) {
	for _, entries := range []map[string]time.Time{l.issued, l.revoked} {
		for jti, exp := range entries {
			if !exp.IsZero() && !now.Before(exp) {
				delete(entries, jti)
			}
		}
	}
}

// Revoked counts the revoked credentials still tracked.
func (l *AccessLedger) Revoked() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.revoked)
}
