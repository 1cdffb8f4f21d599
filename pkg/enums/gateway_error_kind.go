package enums

// GatewayErrorKind splits gateway failures into transport and backend rejections.
type GatewayErrorKind string

const (
	GatewayErrorNetwork         GatewayErrorKind = "NETWORK"
	GatewayErrorBackendRejected GatewayErrorKind = "BACKEND_REJECTED"
)

// String implements fmt.Stringer.
func (k GatewayErrorKind) String() string {
	return string(k)
}

// IsValid reports whether the kind is recognized.
func (k GatewayErrorKind) IsValid() bool {
	return k == GatewayErrorNetwork || k == GatewayErrorBackendRejected
}
