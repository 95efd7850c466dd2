package enums

// ReservationStatus mirrors the order status on the reserved slot.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDENTE"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMADO"
	ReservationStatusCancelled ReservationStatus = "CANCELADO"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusCancelled,
}

// String implements fmt.Stringer.
func (r ReservationStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReservationStatus.
func (r ReservationStatus) IsValid() bool {
	return oneOf(r, validReservationStatuses)
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	return parseOneOf("reservation status", value, validReservationStatuses)
}
