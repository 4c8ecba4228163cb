package tariff

import "math"

// Money amounts are int64 kobo. Units are int64 hundredths of a kWh, so a
// floor to two decimal places is exact integer truncation.

// Policy holds the fixed charges applied to every prepaid recharge.
type Policy struct {
	// ServiceCharge is deducted from the gross amount before VAT, in kobo.
	ServiceCharge int64
	// VATRate is the consumption tax rate applied on the net amount.
	VATRate float64
	// FeeBasisPoints is the transaction processing fee in basis points.
	FeeBasisPoints int64
	// MinFee is the transaction fee floor, in kobo.
	MinFee int64
}

// DefaultPolicy returns the standard charge schedule: ₦100 service charge,
// 7.5% VAT, 1.5% processing fee with a ₦50 floor.
func DefaultPolicy() Policy {
	return Policy{
		ServiceCharge:  100_00,
		VATRate:        0.075,
		FeeBasisPoints: 150,
		MinFee:         50_00,
	}
}

// Breakdown is the full unit/fee/tax split for one recharge amount.
type Breakdown struct {
	// Amount is the gross recharge amount in kobo.
	Amount int64
	// ServiceCharge is the fixed charge deducted before tax, in kobo.
	ServiceCharge int64
	// VAT is the consumption tax portion of (amount - serviceCharge), in kobo.
	VAT int64
	// NetAmount is the tax-exclusive amount that buys units, in kobo.
	NetAmount int64
	// Units is the kWh credit in hundredths of a kWh, floored. Never rounds
	// up so the issuer is not over-credited.
	Units int64
	// Fee is the transaction processing fee, in kobo. Charged on top of the
	// gross amount, distinct from the service charge.
	Fee int64
	// Rate is the disco rate used for the unit derivation.
	Rate Rate
}

// Calculator derives unit and fee breakdowns from an immutable rate table.
// It is a pure function of its inputs and performs no I/O.
type Calculator struct {
	table  *Table
	policy Policy
}

func NewCalculator(table *Table, policy Policy) *Calculator {
	if table == nil {
		table = DefaultTable()
	}
	return &Calculator{table: table, policy: policy}
}

// Calculate computes the breakdown for a prepaid recharge amount against a
// disco. Unknown discos fall back to the default rate; amounts at or below
// the service charge yield zero units.
func (c *Calculator) Calculate(amount int64, disco string) Breakdown {
	rate := c.table.Rate(disco)
	out := Breakdown{
		Amount:        amount,
		ServiceCharge: c.policy.ServiceCharge,
		Fee:           c.Fee(amount),
		Rate:          rate,
	}

	effective := amount - c.policy.ServiceCharge
	if effective <= 0 {
		out.ServiceCharge = amount
		return out
	}

	netNaira := (float64(effective) / 100.0) / (1 + c.policy.VATRate)
	out.NetAmount = int64(math.Floor(netNaira * 100.0))
	out.VAT = effective - out.NetAmount
	out.Units = int64(math.Floor(netNaira * float64(rate) * 100.0))
	return out
}

// Fee returns the transaction processing fee for a gross amount:
// max(amount x fee%, minimum fee).
func (c *Calculator) Fee(amount int64) int64 {
	fee := amount * c.policy.FeeBasisPoints / 10_000
	if fee < c.policy.MinFee {
		return c.policy.MinFee
	}
	return fee
}

// UnitsToKWh formats hundredths of a kWh as a float for display payloads.
func UnitsToKWh(units int64) float64 {
	return float64(units) / 100.0
}
