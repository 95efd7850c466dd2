package enums

// ConnectStatus tracks a tenant's Stripe Connect onboarding.
type ConnectStatus string

const (
	ConnectStatusNotConnected ConnectStatus = "not_connected"
	ConnectStatusPending      ConnectStatus = "pending"
	ConnectStatusConnected    ConnectStatus = "connected"
)

var validConnectStatuses = []ConnectStatus{
	ConnectStatusNotConnected,
	ConnectStatusPending,
	ConnectStatusConnected,
}

// String implements fmt.Stringer.
func (c ConnectStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConnectStatus.
func (c ConnectStatus) IsValid() bool {
	return oneOf(c, validConnectStatuses)
}

// ParseConnectStatus converts raw input into a ConnectStatus.
func ParseConnectStatus(value string) (ConnectStatus, error) {
	return parseOneOf("connect status", value, validConnectStatuses)
}
