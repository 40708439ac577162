package providers

import "context"

type AuthProvider interface {
	IssueToken(ctx context.Context, playerID int64) (string, error)
	VerifyToken(ctx context.Context, token string) (*TokenClaims, error)
}

type TokenClaims struct {
	PlayerID int64 `json:"playerId"`
}
