package domain

import (
	"fmt"
	"time"
)

// OutcomeKind clasifica el resultado de una operación de verificación.
type OutcomeKind int

const (
	// OutcomeSuccess: la operación se completó.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeNoop: conflicto o repetición idempotente; nada cambió.
	OutcomeNoop
	// OutcomeRejected: error del usuario, se le responde tal cual.
	OutcomeRejected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoop:
		return "noop"
	case OutcomeRejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Reason identifica el mensaje concreto que el dispatcher debe mostrar.
type Reason string

const (
	ReasonCodeSent        Reason = "code_sent"
	ReasonVerified        Reason = "verified"
	ReasonFound           Reason = "found"
	ReasonAlreadyVerified Reason = "already_verified"
	ReasonEmailClaimed    Reason = "email_claimed"
	ReasonNotVerified     Reason = "not_verified"
	ReasonNotFound        Reason = "not_found"
	ReasonInvalidDomain   Reason = "invalid_domain"
	ReasonInvalidCode     Reason = "invalid_code"
)

// Outcome es el resultado etiquetado de una operación del flujo.
type Outcome struct {
	Kind      OutcomeKind
	Reason    Reason
	Email     string
	ExpiresAt time.Time
}

func Success(reason Reason, email string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Reason: reason, Email: email}
}

func Noop(reason Reason) Outcome {
	return Outcome{Kind: OutcomeNoop, Reason: reason}
}

func Rejected(reason Reason) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}
