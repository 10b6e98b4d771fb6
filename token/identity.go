package token

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/bluecollar-client/internal/errors"
	"github.com/pkg/errors"
)

// UserID is a user identifier normalised to its canonical string form.
// Token claims carry it as a JSON number while chat payloads may carry it
// as a string, so both decode to the same value.
type UserID string

// NewUserID normalises raw into a UserID. Integers lose leading zeros and
// surrounding whitespace; anything else is kept trimmed as-is.
func NewUserID(raw string) UserID {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return UserID(strconv.FormatInt(n, 10))
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
		return UserID(strconv.FormatInt(int64(f), 10))
	}
	return UserID(raw)
}

// UserIDFromInt returns the UserID for a numeric identifier.
func UserIDFromInt(id int64) UserID {
	return UserID(strconv.FormatInt(id, 10))
}

func (u UserID) String() string {
	return string(u)
}

// Int64 returns the numeric form of the id, if it has one.
func (u UserID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(u), 10, 64)
	return n, err == nil
}

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = NewUserID(s)
		return nil
	}
	*u = NewUserID(string(data))
	return nil
}

func (u UserID) MarshalJSON() ([]byte, error) {
	if n, ok := u.Int64(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(u))
}

// Claims are the identity claims the backend embeds in an access credential.
type Claims struct {
	UserID     UserID `json:"user_id"`
	Username   string `json:"username"`
	IsProvider bool   `json:"is_provider"`
	jwt.RegisteredClaims
}

// Identity is the decoded, read-only view of who the session belongs to.
type Identity struct {
	UserID     UserID
	Username   string
	IsProvider bool
	ExpiresAt  time.Time
}

// Is reports whether other refers to the same user, regardless of whether
// it was encoded as a number or a string.
func (i *Identity) Is(other UserID) bool {
	if i == nil || i.UserID == "" {
		return false
	}
	return i.UserID == NewUserID(string(other))
}

// Expired reports whether the access credential has passed its exp claim.
func (i *Identity) Expired(now time.Time) bool {
	if i == nil {
		return true
	}
	if i.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(i.ExpiresAt)
}

// Decode reads the identity claims out of an access credential without
// verifying its signature; the backend is the only party that can do that.
func Decode(rawToken string) (*Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrInvalidToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}

	// simplejwt style tokens put the id in user_id, others only in sub
	userID := claims.UserID
	if userID == "" && claims.Subject != "" {
		userID = NewUserID(claims.Subject)
	}

	identity := &Identity{
		UserID:     userID,
		Username:   claims.Username,
		IsProvider: claims.IsProvider,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}
