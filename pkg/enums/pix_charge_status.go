package enums

// PixChargeStatus mirrors the OpenPix charge status.
type PixChargeStatus string

const (
	PixChargeStatusActive    PixChargeStatus = "ACTIVE"
	PixChargeStatusCompleted PixChargeStatus = "COMPLETED"
	PixChargeStatusExpired   PixChargeStatus = "EXPIRED"
)

var validPixChargeStatuses = []PixChargeStatus{
	PixChargeStatusActive,
	PixChargeStatusCompleted,
	PixChargeStatusExpired,
}

// String implements fmt.Stringer.
func (p PixChargeStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PixChargeStatus.
func (p PixChargeStatus) IsValid() bool {
	return oneOf(p, validPixChargeStatuses)
}

// ParsePixChargeStatus converts raw input into a PixChargeStatus.
func ParsePixChargeStatus(value string) (PixChargeStatus, error) {
	return parseOneOf("pix charge status", value, validPixChargeStatuses)
}
