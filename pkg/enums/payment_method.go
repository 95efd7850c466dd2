package enums

// PaymentMethod is the method an end user picks at checkout.
type PaymentMethod string

const (
	PaymentMethodStripe      PaymentMethod = "stripe"
	PaymentMethodPix         PaymentMethod = "pix"
	PaymentMethodMercadoPago PaymentMethod = "mercadopago"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodStripe,
	PaymentMethodPix,
	PaymentMethodMercadoPago,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	return oneOf(p, validPaymentMethods)
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parseOneOf("payment method", value, validPaymentMethods)
}
