package gateways

import "github.com/shopspring/decimal"

const basisPointsScale = 10000

// SplitBreakdown divides a charge between the platform and the tenant.
type SplitBreakdown struct {
	TotalCents        int64           `json:"total_cents"`
	PlatformFeeCents  int64           `json:"platform_fee_cents"`
	TenantAmountCents int64           `json:"tenant_amount_cents"`
	FeePercent        decimal.Decimal `json:"fee_percent"`
}

// ComputeSplit rounds the platform fee half-up to whole cents; the tenant
// receives the remainder so both parts always add up to total.
func ComputeSplit(totalCents int64, feeBasisPoints int) SplitBreakdown {
	if feeBasisPoints < 0 {
		feeBasisPoints = 0
	}
	if feeBasisPoints > basisPointsScale {
		feeBasisPoints = basisPointsScale
	}
	bps := decimal.NewFromInt(int64(feeBasisPoints))
	fee := decimal.NewFromInt(totalCents).Mul(bps).DivRound(decimal.NewFromInt(basisPointsScale), 0).IntPart()
	return SplitBreakdown{
		TotalCents:        totalCents,
		PlatformFeeCents:  fee,
		TenantAmountCents: totalCents - fee,
		FeePercent:        bps.Div(decimal.NewFromInt(100)),
	}
}
