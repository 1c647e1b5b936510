package repository

import "errors"

var (
	// ErrNotFound indica que no existe la fila buscada (o que el código expiró).
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken indica que otra identidad ya verificó ese email.
	ErrEmailTaken = errors.New("email already verified by another identity")
)
