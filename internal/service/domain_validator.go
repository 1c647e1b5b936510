package service

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidDomain indica que el email no es válido o no pertenece a un dominio permitido.
var ErrInvalidDomain = errors.New("email domain not allowed")

// DomainValidator acepta emails cuyo dominio es, o es subdominio de, alguno
// de los sufijos permitidos. Es un chequeo sintáctico: la propiedad del buzón
// se prueba recién al canjear el código.
type DomainValidator struct {
	suffixes []string
	validate *validator.Validate
}

func NewDomainValidator(suffixes []string) *DomainValidator {
	cleaned := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.TrimLeft(s, "@.")
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return &DomainValidator{
		suffixes: cleaned,
		validate: validator.New(),
	}
}

// Suffixes devuelve los sufijos normalizados, para mensajes de ayuda.
func (v *DomainValidator) Suffixes() []string {
	out := make([]string, len(v.suffixes))
	copy(out, v.suffixes)
	return out
}

// Validate normaliza el email a minúsculas y verifica su dominio.
func (v *DomainValidator) Validate(raw string) (string, error) {
	email := normalizeEmail(raw)
	if email == "" || strings.Count(email, "@") != 1 {
		return "", ErrInvalidDomain
	}
	if err := v.validate.Var(email, "email"); err != nil {
		return "", ErrInvalidDomain
	}

	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "", ErrInvalidDomain
	}
	domain := email[at+1:]
	for _, suffix := range v.suffixes {
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return email, nil
		}
	}
	return "", ErrInvalidDomain
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
