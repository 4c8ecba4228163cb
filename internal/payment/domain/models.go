package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentStatus is the lifecycle state of a payment.
//
//	pending -> processing -> {successful, failed, cancelled}
//
// failed and cancelled are terminal. successful is terminal with respect to
// settlement; refunds overlay it without replacing the status.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// PaymentMethod is the customer-facing funding instrument.
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodUSSD         PaymentMethod = "ussd"
	PaymentMethodWallet       PaymentMethod = "wallet"
)

// PaymentGateway identifies the processor that collected the money.
type PaymentGateway string

const (
	GatewayFlutterwave PaymentGateway = "flutterwave"
	GatewayRemita      PaymentGateway = "remita"
	GatewayInterswitch PaymentGateway = "interswitch"
)

// PaymentType distinguishes token-vending recharges from bill settlements.
type PaymentType string

const (
	PaymentTypePrepaidRecharge PaymentType = "prepaid_recharge"
	PaymentTypePostpaidBill    PaymentType = "postpaid_bill"
)

// FailureReasonSettlement marks payments forced to failed because settlement
// could not produce a token.
const FailureReasonSettlement = "settlement_failed"

// Payment is one monetary transaction attempt against one meter. Rows are
// append-mostly: only status, gateway reference and the refund fields mutate
// after creation, and corrections are recorded as refunds, never edits.
// Amounts are int64 kobo.
type Payment struct {
	ID               snowflake.ID   `gorm:"primaryKey"`
	Reference        string         `gorm:"type:text;not null;uniqueIndex"`
	GatewayReference string         `gorm:"type:text;index"`
	MeterID          snowflake.ID   `gorm:"not null;index"`
	Amount           int64          `gorm:"not null"`
	Fee              int64          `gorm:"not null;default:0"`
	TotalAmount      int64          `gorm:"not null"`
	Currency         string         `gorm:"type:text;not null;default:NGN"`
	Status           PaymentStatus  `gorm:"type:text;not null;default:pending;index"`
	Method           PaymentMethod  `gorm:"type:text;not null"`
	Gateway          PaymentGateway `gorm:"type:text;not null"`
	Type             PaymentType    `gorm:"type:text;not null"`
	GatewayPayload   datatypes.JSON `gorm:"type:jsonb"`
	FailureReason    string         `gorm:"type:text"`
	IsRefunded       bool           `gorm:"not null;default:false"`
	RefundedAmount   int64          `gorm:"not null;default:0"`
	PaidAt           *time.Time
	FailedAt         *time.Time
	RefundedAt       *time.Time
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// GatewayEvent is one received webhook delivery. The unique (gateway,
// provider_event_id) pair makes a redelivery load the stored row instead of
// reprocessing it; the row and the state change it caused commit together.
type GatewayEvent struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	Gateway         PaymentGateway `gorm:"type:text;not null;uniqueIndex:idx_gateway_events_provider"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:idx_gateway_events_provider"`
	Event           string         `gorm:"type:text;not null"`
	Reference       string         `gorm:"type:text;not null;index"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt      time.Time      `gorm:"not null"`
	ProcessedAt     *time.Time
}

// TableName sets the database table name.
func (GatewayEvent) TableName() string { return "gateway_events" }

// IsTerminal reports whether the payment can no longer change status.
func IsTerminal(status PaymentStatus) bool {
	switch status {
	case PaymentStatusSuccessful, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// RefundableAmount is how much of the payment may still be refunded.
func RefundableAmount(p *Payment) int64 {
	if p == nil || p.Status != PaymentStatusSuccessful {
		return 0
	}
	return p.Amount - p.RefundedAmount
}
