package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	meterdomain "github.com/TheCyberMayor/PowerPay/internal/meter/domain"
)

type repository struct{}

// Provide returns the gorm-backed meter repository.
func Provide() meterdomain.Repository {
	return repository{}
}

func (repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*meterdomain.Meter, error) {
	var meter meterdomain.Meter
	err := db.WithContext(ctx).Where("id = ?", id).First(&meter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meter, nil
}

func (repository) FindByNumber(ctx context.Context, db *gorm.DB, meterNumber string) (*meterdomain.Meter, error) {
	meterNumber = strings.TrimSpace(meterNumber)
	if meterNumber == "" {
		return nil, nil
	}
	var meter meterdomain.Meter
	err := db.WithContext(ctx).Where("meter_number = ?", meterNumber).First(&meter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meter, nil
}
