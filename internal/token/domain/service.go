package domain

import (
	"context"
	"errors"
)

// Service exposes the token lifecycle after issuance: generated -> used via
// Redeem, generated -> expired via the expiry sweep.
type Service interface {
	FindByCode(ctx context.Context, code string) (*Token, error)
	// Redeem marks a generated, unexpired token as used.
	Redeem(ctx context.Context, code string) (*Token, error)
}

var (
	ErrTokenNotFound      = errors.New("token_not_found")
	ErrTokenMalformed     = errors.New("token_malformed")
	ErrTokenExpired       = errors.New("token_expired")
	ErrTokenAlreadyUsed   = errors.New("token_already_used")
	ErrTokenNotRedeemable = errors.New("token_not_redeemable")
)
