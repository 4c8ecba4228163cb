package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
)

type repository struct{}

// Provide returns the gorm-backed token repository.
func Provide() tokendomain.Repository {
	return repository{}
}

func (repository) Insert(ctx context.Context, db *gorm.DB, token *tokendomain.Token) error {
	return db.WithContext(ctx).Create(token).Error
}

func (repository) CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&tokendomain.Token{}).
		Where("token_code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (repository) FindByCode(ctx context.Context, db *gorm.DB, code string) (*tokendomain.Token, error) {
	var token tokendomain.Token
	err := db.WithContext(ctx).Where("token_code = ?", code).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (repository) FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*tokendomain.Token, error) {
	var token tokendomain.Token
	err := db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (repository) MarkUsed(ctx context.Context, db *gorm.DB, code string, usedAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tokens
		 SET status = ?, used_at = ?, updated_at = ?
		 WHERE token_code = ? AND status = ?`,
		tokendomain.TokenStatusUsed,
		usedAt,
		usedAt,
		code,
		tokendomain.TokenStatusGenerated,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repository) ExpireBatch(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 100
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE tokens
		 SET status = ?, updated_at = ?
		 WHERE id IN (
			SELECT id FROM tokens
			WHERE status = ? AND expires_at < ?
			ORDER BY expires_at
			LIMIT ?
		 )`,
		tokendomain.TokenStatusExpired,
		now,
		tokendomain.TokenStatusGenerated,
		now,
		limit,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
