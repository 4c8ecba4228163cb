package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the storage access for payments. State transitions are
// conditional updates keyed on the current status, so a transition either
// wins its compare-and-set or observes that another writer already moved the
// payment; callers re-read the row to learn the post-commit state.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*Payment, error)
	// FindByAnyReference resolves either the internal or the gateway
	// reference.
	FindByAnyReference(ctx context.Context, db *gorm.DB, reference string) (*Payment, error)

	// MarkProcessing moves pending -> processing. Returns false when the
	// payment was not pending.
	MarkProcessing(ctx context.Context, db *gorm.DB, reference string) (bool, error)
	// ClaimSuccess moves pending|processing -> successful and stamps the
	// gateway reference and paid time. Exactly one concurrent caller wins.
	ClaimSuccess(ctx context.Context, db *gorm.DB, reference, gatewayReference string, payload []byte, paidAt time.Time) (bool, error)
	// MarkFailed moves pending|processing -> failed with a reason. Also used
	// inside a settlement transaction to demote a freshly claimed success.
	MarkFailed(ctx context.Context, db *gorm.DB, reference, reason string, failedAt time.Time, fromStatuses ...PaymentStatus) (bool, error)
	// MarkCancelled moves pending -> cancelled only.
	MarkCancelled(ctx context.Context, db *gorm.DB, reference string) (bool, error)
	// ApplyRefund adds amount to refundedAmount iff the payment is
	// successful and the running total stays within the paid amount.
	ApplyRefund(ctx context.Context, db *gorm.DB, reference string, amount int64, refundedAt time.Time) (bool, error)

	// InsertEvent records a webhook delivery. Returns false when a row with
	// the same (gateway, provider_event_id) already exists.
	InsertEvent(ctx context.Context, db *gorm.DB, event *GatewayEvent) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, gateway PaymentGateway, providerEventID string) (*GatewayEvent, error)
	MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}
