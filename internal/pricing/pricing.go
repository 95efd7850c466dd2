package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

const (
	msPerHour = int64(time.Hour / time.Millisecond)
	day       = 24 * time.Hour
)

// Rates are the per-mode prices of an agenda in cents. Nil means not configured.
type Rates struct {
	HourlyCents *int64
	ShiftCents  *int64
	DailyCents  *int64
}

// RatesFromAgenda copies the configured rates off an agenda row.
func RatesFromAgenda(agenda *models.Agenda) Rates {
	if agenda == nil {
		return Rates{}
	}
	return Rates{
		HourlyCents: agenda.HourlyRateCents,
		ShiftCents:  agenda.ShiftRateCents,
		DailyCents:  agenda.DailyRateCents,
	}
}

// For returns the positive rate configured for mode.
func (r Rates) For(mode enums.BillingMode) (int64, bool) {
	var rate *int64
	switch mode {
	case enums.BillingModeHour:
		rate = r.HourlyCents
	case enums.BillingModeShift:
		rate = r.ShiftCents
	case enums.BillingModeDay:
		rate = r.DailyCents
	}
	if rate == nil || *rate <= 0 {
		return 0, false
	}
	return *rate, true
}

// Quote is the priced result for one reservation window.
type Quote struct {
	Mode           enums.BillingMode `json:"mode"`
	Units          decimal.Decimal   `json:"units"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	TotalCents     int64             `json:"total_cents"`
}

// Calculate prices the window [start, end] for the given billing mode.
//
// HORA bills proportionally to the millisecond and rounds half-up to whole
// cents. TURNO charges the shift rate whatever the duration. DIA charges the
// daily rate once per started 24h period.
func Calculate(mode enums.BillingMode, rates Rates, start, end time.Time) (Quote, error) {
	if !end.After(start) {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	duration := end.Sub(start)

	switch mode {
	case enums.BillingModeHour:
		rate, err := requireRate(rates.HourlyCents)
		if err != nil {
			return Quote{}, err
		}
		ms := decimal.NewFromInt(duration.Milliseconds())
		hours := decimal.NewFromInt(msPerHour)
		total := decimal.NewFromInt(rate).Mul(ms).DivRound(hours, 0)
		return Quote{
			Mode:           mode,
			Units:          ms.Div(hours),
			UnitPriceCents: rate,
			TotalCents:     total.IntPart(),
		}, nil
	case enums.BillingModeShift:
		rate, err := requireRate(rates.ShiftCents)
		if err != nil {
			return Quote{}, err
		}
		return Quote{
			Mode:           mode,
			Units:          decimal.NewFromInt(1),
			UnitPriceCents: rate,
			TotalCents:     rate,
		}, nil
	case enums.BillingModeDay:
		rate, err := requireRate(rates.DailyCents)
		if err != nil {
			return Quote{}, err
		}
		days := int64(duration / day)
		if duration%day != 0 {
			days++
		}
		return Quote{
			Mode:           mode,
			Units:          decimal.NewFromInt(days),
			UnitPriceCents: rate,
			TotalCents:     rate * days,
		}, nil
	default:
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid reservation type")
	}
}

func requireRate(rate *int64) (int64, error) {
	if rate == nil || *rate <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "rate not configured")
	}
	return *rate, nil
}
