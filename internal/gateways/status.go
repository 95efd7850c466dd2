package gateways

import (
	"strings"

	"github.com/dezko/dezko-backend/pkg/enums"
)

// NormalizeStatus maps a provider's charge status onto the shared
// {pending, approved, rejected, cancelled} vocabulary. Stripe intents waiting
// on the client (requires_payment_method, requires_confirmation,
// requires_action) stay pending; a declined attempt is detected by the
// adapter from the intent's last payment error.
func NormalizeStatus(gw enums.Gateway, raw string) enums.PaymentStatus {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch gw {
	case enums.GatewayStripe:
		switch value {
		case "succeeded":
			return enums.PaymentStatusApproved
		case "canceled", "cancelled":
			return enums.PaymentStatusCancelled
		}
	case enums.GatewayOpenPix:
		switch value {
		case "completed":
			return enums.PaymentStatusApproved
		case "expired":
			return enums.PaymentStatusCancelled
		}
	case enums.GatewayMercadoPago:
		switch value {
		case "approved":
			return enums.PaymentStatusApproved
		case "rejected":
			return enums.PaymentStatusRejected
		case "cancelled", "refunded", "charged_back":
			return enums.PaymentStatusCancelled
		}
	}
	return enums.PaymentStatusPending
}
