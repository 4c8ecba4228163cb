package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TokenStatus is the lifecycle state of an issued token.
type TokenStatus string

const (
	TokenStatusGenerated TokenStatus = "generated"
	TokenStatusUsed      TokenStatus = "used"
	TokenStatusExpired   TokenStatus = "expired"
	TokenStatusInvalid   TokenStatus = "invalid"
)

// Token is one issued prepaid recharge credential. Created only by
// settlement as a side effect of a payment's first successful confirmation;
// after creation only its status (and usedAt) mutate. The unique index on
// PaymentID enforces the one-token-per-payment rule at the schema level on
// top of the application-level guarantee.
type Token struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TokenCode string       `gorm:"type:text;not null;uniqueIndex"`
	PaymentID snowflake.ID `gorm:"not null;uniqueIndex"`
	MeterID   snowflake.ID `gorm:"not null;index"`
	// Amount is the payment amount at issuance, in kobo. Tokens are never
	// re-priced after issuance.
	Amount int64 `gorm:"not null"`
	// Units is the kWh credit in hundredths of a kWh.
	Units     int64       `gorm:"not null"`
	Status    TokenStatus `gorm:"type:text;not null;default:generated;index"`
	ExpiresAt time.Time   `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Token) TableName() string { return "tokens" }

// IsExpired reports whether the token has passed its validity window.
func IsExpired(t *Token, now time.Time) bool {
	return t != nil && now.After(t.ExpiresAt)
}

// IsRedeemable reports whether the token can still be loaded into a meter.
func IsRedeemable(t *Token, now time.Time) bool {
	return t != nil && t.Status == TokenStatusGenerated && !IsExpired(t, now)
}

// FormatCode renders a token code as XXXX-XXXX-XXXX-XXXX-XXXX for display.
func FormatCode(code string) string {
	if len(code) == 0 {
		return ""
	}
	out := make([]byte, 0, len(code)+len(code)/4)
	for i := 0; i < len(code); i++ {
		if i > 0 && i%4 == 0 {
			out = append(out, '-')
		}
		out = append(out, code[i])
	}
	return string(out)
}
