package sessions

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/gogotex/todo-api/internal/document"
	"golang.org/x/crypto/sha3"
)

// Session is a refresh session issued by the local auth provider.
type Session struct {
	document.Base `bson:",inline"`
	RefreshToken  string    `bson:"refreshToken" json:"refreshToken"`
	Sub           string    `bson:"sub" json:"sub"`
	DeviceHash    string    `bson:"deviceHash,omitempty" json:"deviceHash,omitempty"`
	ExpiresAt     time.Time `bson:"expiresAt" json:"expiresAt"`
}

// Repository provides session persistence operations. GetByRefresh returns
// nil when the token is unknown.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByRefresh(ctx context.Context, refresh string) (*Session, error)
	DeleteByRefresh(ctx context.Context, refresh string) error
}

// DeviceHash fingerprints the client a refresh token was handed to.
func DeviceHash(userAgent, ip, origin string) string {
	sum := make([]byte, 16)
	sha3.ShakeSum256(sum, []byte(userAgent+":"+ip+":"+origin))
	return hex.EncodeToString(sum)
}
