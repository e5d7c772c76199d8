package service

import (
	"context"
	"errors"

	"arqueo/internal/apierror"
	"arqueo/internal/conteo"
	"arqueo/internal/model"
	"arqueo/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Directorio resolves the reference entities owned by other systems:
// employees by code, registers by id and the denomination catalog.
type Directorio interface {
	// ResolverEmpleado returns NotFound unless the code belongs to an active employee.
	ResolverEmpleado(ctx context.Context, codigo string) (*model.Empleado, error)
	ResolverPuntoDeVenta(ctx context.Context, id uuid.UUID) (*model.PuntoDeVenta, error)
	Catalogo(ctx context.Context) (*conteo.Catalogo, error)
	InvalidarEmpleado(ctx context.Context, codigo string) error
}

const claveDenominaciones = "denominaciones"

type directorio struct {
	repo  repository.ReferenciaRepository
	cache Cache
}

// NewDirectorio reads reference tables through repo. cache may be nil, in
// which case every lookup hits the database.
func NewDirectorio(repo repository.ReferenciaRepository, cache Cache) Directorio {
	return &directorio{repo: repo, cache: cache}
}

func (d *directorio) ResolverEmpleado(ctx context.Context, codigo string) (*model.Empleado, error) {
	key := "empleado:" + codigo
	var emp model.Empleado
	if d.leer(ctx, key, &emp) {
		return &emp, nil
	}
	e, err := d.repo.FindEmpleadoActivoByCodigo(ctx, codigo)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NotFound("empleado %q no encontrado o inactivo", codigo)
	}
	if err != nil {
		return nil, apierror.Internal(err, "error consultando empleados")
	}
	d.guardar(ctx, key, e)
	return e, nil
}

func (d *directorio) ResolverPuntoDeVenta(ctx context.Context, id uuid.UUID) (*model.PuntoDeVenta, error) {
	key := "pdv:" + id.String()
	var pdv model.PuntoDeVenta
	if d.leer(ctx, key, &pdv) {
		return &pdv, nil
	}
	p, err := d.repo.FindPuntoDeVentaByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NotFound("punto de venta no encontrado")
	}
	if err != nil {
		return nil, apierror.Internal(err, "error consultando puntos de venta")
	}
	d.guardar(ctx, key, p)
	return p, nil
}

func (d *directorio) Catalogo(ctx context.Context) (*conteo.Catalogo, error) {
	var rows []model.Denominacion
	if !d.leer(ctx, claveDenominaciones, &rows) {
		var err error
		rows, err = d.repo.ListDenominaciones(ctx)
		if err != nil {
			return nil, apierror.Internal(err, "error consultando denominaciones")
		}
		d.guardar(ctx, claveDenominaciones, rows)
	}
	ds := make([]conteo.Denominacion, len(rows))
	for i, r := range rows {
		ds[i] = r.ToConteo()
	}
	return conteo.NewCatalogo(ds), nil
}

func (d *directorio) InvalidarEmpleado(ctx context.Context, codigo string) error {
	if d.cache == nil {
		return nil
	}
	if err := d.cache.Invalidate(ctx, "empleado:"+codigo); err != nil {
		return apierror.Internal(err, "error invalidando caché")
	}
	return nil
}

// leer and guardar treat the cache as best effort: a cache outage degrades to
// direct reads.
func (d *directorio) leer(ctx context.Context, key string, dest any) bool {
	if d.cache == nil {
		return false
	}
	ok, err := d.cache.Get(ctx, key, dest)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("directorio: cache read failed")
		return false
	}
	return ok
}

func (d *directorio) guardar(ctx context.Context, key string, v any) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(ctx, key, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("directorio: cache write failed")
	}
}
