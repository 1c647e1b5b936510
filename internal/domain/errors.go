package domain

import "fmt"

// SystemError envuelve fallos de almacenamiento o de colaboradores externos.
// Siempre se registra completo; al usuario solo le llega un mensaje genérico.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SystemError) Unwrap() error {
	return e.Err
}

// NewSystemError construye un SystemError para la operación op.
func NewSystemError(op string, err error) *SystemError {
	return &SystemError{Op: op, Err: err}
}
