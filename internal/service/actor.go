package service

import (
	"context"
	"errors"

	"arqueo/internal/apierror"
	"arqueo/internal/model"
	"arqueo/internal/repository"

	"github.com/google/uuid"
)

// Actor is the authenticated caller as seen by the services.
// SucursalID is nil for administrators, who are not branch-scoped.
type Actor struct {
	UsuarioID  uuid.UUID
	Rol        string
	SucursalID *uuid.UUID
}

func (a Actor) EsAdmin() bool { return a.Rol == model.RolAdministrador }

// PuedeVerificar reports whether the role may author verifications.
func (a Actor) PuedeVerificar() bool {
	return a.Rol == model.RolSupervisor || a.Rol == model.RolAdministrador
}

// alcanza reports whether the actor's branch scope covers sucursalID.
func (a Actor) alcanza(sucursalID uuid.UUID) bool {
	if a.EsAdmin() {
		return true
	}
	return a.SucursalID != nil && *a.SucursalID == sucursalID
}

func (a Actor) exigirSucursal(sucursalID uuid.UUID) error {
	if !a.alcanza(sucursalID) {
		return apierror.Forbidden("la caja pertenece a otra sucursal")
	}
	return nil
}

// Cache is the read-through cache handed to the directory and the ledger
// adapter. infra.Cache implements it.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Invalidate(ctx context.Context, keys ...string) error
}

// storageErr converts repository errors that were not handled explicitly.
func storageErr(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apierror.NotFound("%s", notFoundMsg)
	default:
		var ae *apierror.Error
		if errors.As(err, &ae) {
			return err
		}
		return apierror.Internal(err, "error de almacenamiento")
	}
}
