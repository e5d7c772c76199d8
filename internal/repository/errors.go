package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("registro no encontrado")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("registro duplicado")
	// ErrEstadoObsoleto is returned when a conditional update on estado
	// matched no row: another request already moved the session.
	ErrEstadoObsoleto = errors.New("el estado de la sesión cambió")
)

// translate maps gorm errors onto the package sentinels. The connection must be
// opened with TranslateError so driver unique violations surface as
// gorm.ErrDuplicatedKey.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
