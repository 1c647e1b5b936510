package service

import (
	"math/rand/v2"
	"strings"
)

// VerificationCodeLength es la cantidad de dígitos de cada código emitido.
const VerificationCodeLength = 6

// GenerateCode devuelve exactamente length dígitos decimales, con ceros a la
// izquierda incluidos.
func GenerateCode(length int) string {
	if length <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}
