package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	paymentdomain "github.com/TheCyberMayor/PowerPay/internal/payment/domain"
)

type repository struct{}

// Provide returns the gorm-backed payment repository. Every transition is a
// conditional UPDATE keyed on the current status; under read-committed
// isolation a concurrent writer blocks on the row lock and re-evaluates the
// predicate after commit, so exactly one compare-and-set wins.
func Provide() paymentdomain.Repository {
	return repository{}
}

func (repository) Create(ctx context.Context, db *gorm.DB, payment *paymentdomain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (repository) FindByReference(ctx context.Context, db *gorm.DB, ref string) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := db.WithContext(ctx).Where("reference = ?", ref).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (repository) FindByAnyReference(ctx context.Context, db *gorm.DB, ref string) (*paymentdomain.Payment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	var payment paymentdomain.Payment
	err := db.WithContext(ctx).
		Where("reference = ? OR gateway_reference = ?", ref, ref).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (repository) MarkProcessing(ctx context.Context, db *gorm.DB, ref string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, updated_at = ?
		 WHERE reference = ? AND status = ?`,
		paymentdomain.PaymentStatusProcessing,
		time.Now().UTC(),
		ref,
		paymentdomain.PaymentStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repository) ClaimSuccess(ctx context.Context, db *gorm.DB, ref, gatewayRef string, payload []byte, paidAt time.Time) (bool, error) {
	// The gateway reference is written once and immutable after first write.
	var payloadValue any
	if len(payload) > 0 {
		payloadValue = payload
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?,
		     gateway_reference = CASE WHEN gateway_reference = '' THEN ? ELSE gateway_reference END,
		     gateway_payload = ?,
		     paid_at = ?,
		     updated_at = ?
		 WHERE reference = ? AND status IN (?, ?)`,
		paymentdomain.PaymentStatusSuccessful,
		gatewayRef,
		payloadValue,
		paidAt,
		paidAt,
		ref,
		paymentdomain.PaymentStatusPending,
		paymentdomain.PaymentStatusProcessing,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repository) MarkFailed(ctx context.Context, db *gorm.DB, ref, reason string, failedAt time.Time, fromStatuses ...paymentdomain.PaymentStatus) (bool, error) {
	if len(fromStatuses) == 0 {
		fromStatuses = []paymentdomain.PaymentStatus{
			paymentdomain.PaymentStatusPending,
			paymentdomain.PaymentStatusProcessing,
		}
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, failure_reason = ?, failed_at = ?, paid_at = NULL, updated_at = ?
		 WHERE reference = ? AND status IN ?`,
		paymentdomain.PaymentStatusFailed,
		reason,
		failedAt,
		failedAt,
		ref,
		fromStatuses,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repository) MarkCancelled(ctx context.Context, db *gorm.DB, ref string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, updated_at = ?
		 WHERE reference = ? AND status = ?`,
		paymentdomain.PaymentStatusCancelled,
		time.Now().UTC(),
		ref,
		paymentdomain.PaymentStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repository) InsertEvent(ctx context.Context, db *gorm.DB, event *paymentdomain.GatewayEvent) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repository) FindEvent(ctx context.Context, db *gorm.DB, gateway paymentdomain.PaymentGateway, providerEventID string) (*paymentdomain.GatewayEvent, error) {
	var event paymentdomain.GatewayEvent
	err := db.WithContext(ctx).
		Where("gateway = ? AND provider_event_id = ?", gateway, providerEventID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (repository) MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).
		Model(&paymentdomain.GatewayEvent{}).
		Where("id = ?", id).
		Update("processed_at", processedAt).Error
}

func (repository) ApplyRefund(ctx context.Context, db *gorm.DB, ref string, amount int64, refundedAt time.Time) (bool, error) {
	// The refund bound is enforced in the predicate so the running total can
	// never overshoot, even under concurrent refunds.
	result := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET refunded_amount = refunded_amount + ?,
		     is_refunded = ?,
		     refunded_at = ?,
		     updated_at = ?
		 WHERE reference = ?
		   AND status = ?
		   AND refunded_amount + ? <= amount`,
		amount,
		true,
		refundedAt,
		refundedAt,
		ref,
		paymentdomain.PaymentStatusSuccessful,
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
