package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var _ AuthProvider = &HMACAuthProvider{}

// HMACAuthProvider issues and verifies self-contained signed tokens of
// the form base64(playerID:expiry):base64(signature). Tokens carry no
// session state, so verification never touches storage.
type HMACAuthProvider struct {
	secret []byte
	ttl    time.Duration
}

// NewHMACAuthProvider creates a new HMACAuthProvider. Tokens expire
// after the given ttl.
func NewHMACAuthProvider(secret []byte, ttl time.Duration) *HMACAuthProvider {
	return &HMACAuthProvider{
		secret: secret,
		ttl:    ttl,
	}
}

func (p *HMACAuthProvider) IssueToken(ctx context.Context, playerID int64) (string, error) {
	expiry := time.Now().Add(p.ttl).Unix()
	claims := fmt.Sprintf("%d:%d", playerID, expiry)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(claims))
	return encoded + ":" + p.sign(encoded), nil
}

func (p *HMACAuthProvider) VerifyToken(ctx context.Context, token string) (*TokenClaims, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed token")
	}
	encoded, signature := parts[0], parts[1]

	if !hmac.Equal([]byte(p.sign(encoded)), []byte(signature)) {
		return nil, fmt.Errorf("invalid token signature")
	}

	claims, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token claims: %v", err)
	}
	fields := strings.Split(string(claims), ":")
	if len(fields) != 2 {
		return nil, fmt.Errorf("malformed token claims")
	}

	playerID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse player id: %v", err)
	}
	expiry, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token expiry: %v", err)
	}
	if time.Now().Unix() > expiry {
		return nil, fmt.Errorf("token has expired")
	}

	return &TokenClaims{
		PlayerID: playerID,
	}, nil
}

func (p *HMACAuthProvider) sign(encoded string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
