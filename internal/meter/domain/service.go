package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service resolves meters for payment initiation and settlement.
type Service interface {
	FindByID(ctx context.Context, id snowflake.ID) (*Meter, error)
	FindByNumber(ctx context.Context, meterNumber string) (*Meter, error)
}

// Repository is the storage access used by the meter service and by other
// services resolving meters inside their own transactions.
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Meter, error)
	FindByNumber(ctx context.Context, db *gorm.DB, meterNumber string) (*Meter, error)
}

var (
	ErrMeterNotFound    = errors.New("meter_not_found")
	ErrMeterNotEligible = errors.New("meter_not_eligible")
)
