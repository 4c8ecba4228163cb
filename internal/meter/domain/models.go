package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MeterType distinguishes token-vending meters from billed ones.
type MeterType string

const (
	MeterTypePrepaid  MeterType = "prepaid"
	MeterTypePostpaid MeterType = "postpaid"
)

// MeterStatus is the operational state reported by the disco.
type MeterStatus string

const (
	MeterStatusActive       MeterStatus = "active"
	MeterStatusInactive     MeterStatus = "inactive"
	MeterStatusSuspended    MeterStatus = "suspended"
	MeterStatusDisconnected MeterStatus = "disconnected"
)

// Meter is a read model of a registered meter. The core treats it as
// authoritative and read-only; its lifecycle is owned elsewhere.
type Meter struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	MeterNumber  string       `gorm:"type:text;not null;uniqueIndex"`
	CustomerName string       `gorm:"type:text"`
	Address      string       `gorm:"type:text"`
	Disco        string       `gorm:"type:text;not null"`
	Type         MeterType    `gorm:"type:text;not null"`
	Status       MeterStatus  `gorm:"type:text;not null;default:active"`
	TariffCode   string       `gorm:"type:text"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Meter) TableName() string { return "meters" }

// Eligible reports whether the meter may receive payments.
func Eligible(m *Meter) bool {
	return m != nil && m.Status == MeterStatusActive
}
