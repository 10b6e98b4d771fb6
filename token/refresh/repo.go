package refresh

import (
	"time"
)

// StoredRefreshToken is the server-side record behind an opaque refresh
// credential. The client only ever sees Token.
type StoredRefreshToken struct {
	Token  string    // The actual random token string (sent to client)
	UserID string    // Owner of the credential
	Iat    time.Time // Issued at time
}

// Repo manages server-side storage of refresh credentials keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	GetByUserID(userID string) (*StoredRefreshToken, error)
}
