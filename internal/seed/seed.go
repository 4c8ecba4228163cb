// Package seed bootstraps development data.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	meterdomain "github.com/TheCyberMayor/PowerPay/internal/meter/domain"
)

// demoMeters become available in non-production environments so payments can
// be exercised without a disco feed.
var demoMeters = []meterdomain.Meter{
	{
		MeterNumber:  "04123456789",
		CustomerName: "Ada Obi",
		Address:      "12 Adeola Odeku St, Victoria Island, Lagos",
		Disco:        "IKEDC",
		Type:         meterdomain.MeterTypePrepaid,
		Status:       meterdomain.MeterStatusActive,
		TariffCode:   "R2",
	},
	{
		MeterNumber:  "45200031177",
		CustomerName: "Chinedu Okafor",
		Address:      "3 Aba Rd, Port Harcourt",
		Disco:        "PHED",
		Type:         meterdomain.MeterTypePrepaid,
		Status:       meterdomain.MeterStatusActive,
		TariffCode:   "R2",
	},
	{
		MeterNumber:  "62000011122",
		CustomerName: "Bisi Adewale",
		Address:      "27 Gana St, Maitama, Abuja",
		Disco:        "AEDC",
		Type:         meterdomain.MeterTypePostpaid,
		Status:       meterdomain.MeterStatusActive,
		TariffCode:   "C1",
	},
}

// EnsureDemoMeters inserts the demo meters if they are not present yet.
func EnsureDemoMeters(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, meter := range demoMeters {
			var count int64
			err := tx.Model(&meterdomain.Meter{}).
				Where("meter_number = ?", meter.MeterNumber).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			meter.ID = node.Generate()
			if err := tx.Create(&meter).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
