package domain

import "time"

// Identity es una cuenta de la plataforma que completó la verificación.
type Identity struct {
	ID            string `json:"identity_id"`
	DisplayName   string `json:"display_name"`
	Discriminator string `json:"discriminator"`
	VerifiedEmail string `json:"verified_email"`
}

// PendingVerification es un código emitido y aún no canjeado.
type PendingVerification struct {
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	Code       string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Member describe al autor de un comando tal como lo ve la plataforma.
type Member struct {
	ID            string
	Username      string
	Discriminator string
}

// Handle devuelve la forma name#1234 usada por el comando lookup.
func (m Member) Handle() string {
	if m.Discriminator == "" {
		return m.Username
	}
	return m.Username + "#" + m.Discriminator
}
