package auth

// Claims representa al operador autenticado.
type Claims struct {
	UserID string
	Email  string

	// DeviceID identifica el dispositivo/sesión del operador. El calendario
	// local se guarda por este scope; si falta se usa UserID.
	DeviceID string
}

// Scope devuelve la clave del almacenamiento local del operador.
func (c Claims) Scope() string {
	if c.DeviceID != "" {
		return c.DeviceID
	}
	return c.UserID
}
