package enums

// Gateway identifies the external provider that processed a charge.
type Gateway string

const (
	GatewayStripe      Gateway = "stripe"
	GatewayOpenPix     Gateway = "openpix"
	GatewayMercadoPago Gateway = "mercadopago"
)

var validGateways = []Gateway{
	GatewayStripe,
	GatewayOpenPix,
	GatewayMercadoPago,
}

// String implements fmt.Stringer.
func (g Gateway) String() string {
	return string(g)
}

// IsValid reports whether the value is a known Gateway.
func (g Gateway) IsValid() bool {
	return oneOf(g, validGateways)
}

// ParseGateway converts raw input into a Gateway.
func ParseGateway(value string) (Gateway, error) {
	return parseOneOf("gateway", value, validGateways)
}
