package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the storage access for tokens. Insert runs inside the
// settling transaction so the token commits atomically with the payment's
// successful transition.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, token *Token) error
	CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Token, error)
	FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*Token, error)
	// MarkUsed moves generated -> used. Returns false when the token was not
	// in generated status.
	MarkUsed(ctx context.Context, db *gorm.DB, code string, usedAt time.Time) (bool, error)
	// ExpireBatch moves generated tokens past their expiry to expired and
	// returns how many rows changed.
	ExpireBatch(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error)
}
