package clickhouse

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// inspectToken rejects expired or malformed JWTs before any network I/O.
// The signature is not verified here; ClickHouse does that. Tokens that do
// not look like a JWT are passed through untouched.
func inspectToken(token string, now time.Time) error {
	if strings.Count(token, ".") != 2 {
		return nil
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("authentication failed: malformed token: %w", err)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return fmt.Errorf("token expired at %s", claims.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return fmt.Errorf("authentication failed: token not valid before %s", claims.NotBefore.UTC().Format(time.RFC3339))
	}
	return nil
}
