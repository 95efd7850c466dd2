package enums

// SubscriptionStatus tracks a space's plan subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ATIVA"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELADA"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRADA"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusCancelled,
	SubscriptionStatusExpired,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubscriptionStatus.
func (s SubscriptionStatus) IsValid() bool {
	return oneOf(s, validSubscriptionStatuses)
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return parseOneOf("subscription status", value, validSubscriptionStatuses)
}
