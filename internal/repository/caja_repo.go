package repository

import (
	"context"
	"time"

	"arqueo/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SesionQuery filters ListSesiones. Zero values mean "no filter".
type SesionQuery struct {
	PuntoDeVentaID *uuid.UUID
	SucursalID     *uuid.UUID
	Estado         string
	Desde          *time.Time
	Hasta          *time.Time
	Page           int
	Limit          int
}

type CajaRepository interface {
	// CreateSesion returns ErrDuplicate when the register already has an open
	// session (partial unique index uq_sesiones_caja_abierta).
	CreateSesion(ctx context.Context, s *model.SesionCaja) error
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	// FindUltimaSesionNoAbierta returns the most recently created session on the
	// register whose estado is not abierta.
	FindUltimaSesionNoAbierta(ctx context.Context, puntoDeVentaID uuid.UUID) (*model.SesionCaja, error)
	// FindSesionSiguiente returns the first session opened on the register after s.
	FindSesionSiguiente(ctx context.Context, s *model.SesionCaja) (*model.SesionCaja, error)
	// FindSesionesPorIDs loads the given sessions keyed by id; missing ids are
	// absent from the map.
	FindSesionesPorIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.SesionCaja, error)
	// CerrarSesion persists the closing block only if the row is still abierta.
	CerrarSesion(ctx context.Context, s *model.SesionCaja) error
	// VerificarSesion inserts v and moves the session to pendiente_agente in one
	// transaction.
	VerificarSesion(ctx context.Context, v *model.VerificacionCaja) error
	FindVerificacion(ctx context.Context, sesionID uuid.UUID) (*model.VerificacionCaja, error)
	ListSesiones(ctx context.Context, q SesionQuery) ([]model.SesionCaja, int64, error)
	// VerificadasEntre returns which of ids already have a verification.
	VerificadasEntre(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) CreateSesion(ctx context.Context, s *model.SesionCaja) error {
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *cajaRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *cajaRepo) FindUltimaSesionNoAbierta(ctx context.Context, puntoDeVentaID uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("punto_de_venta_id = ? AND estado <> ?", puntoDeVentaID, model.EstadoAbierta).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *cajaRepo) FindSesionSiguiente(ctx context.Context, s *model.SesionCaja) (*model.SesionCaja, error) {
	var next model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("punto_de_venta_id = ? AND opened_at > ? AND id <> ?", s.PuntoDeVentaID, s.OpenedAt, s.ID).
		Order("opened_at ASC").
		First(&next).Error
	if err != nil {
		return nil, translate(err)
	}
	return &next, nil
}

func (r *cajaRepo) FindSesionesPorIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.SesionCaja, error) {
	out := make(map[uuid.UUID]*model.SesionCaja, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var sesiones []model.SesionCaja
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&sesiones).Error; err != nil {
		return nil, translate(err)
	}
	for i := range sesiones {
		out[sesiones[i].ID] = &sesiones[i]
	}
	return out, nil
}

var columnasCierre = []string{
	"estado", "billetes", "monedas", "total_efectivo", "totales_metodo_pago",
	"total_general", "cambio_dejado", "cambio_dejado_total", "efectivo_retirado",
	"observaciones_cierre", "empleado_cierre_id", "usuario_cierre_id", "closed_at",
}

func (r *cajaRepo) CerrarSesion(ctx context.Context, s *model.SesionCaja) error {
	res := r.db.WithContext(ctx).
		Model(s).
		Where("estado = ?", model.EstadoAbierta).
		Select(columnasCierre).
		Updates(s)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrEstadoObsoleto
	}
	return nil
}

func (r *cajaRepo) VerificarSesion(ctx context.Context, v *model.VerificacionCaja) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(v).Error; err != nil {
			return translate(err)
		}
		res := tx.Model(&model.SesionCaja{ID: v.SesionCajaID}).
			Where("estado = ?", model.EstadoPendienteSupervisor).
			Update("estado", model.EstadoPendienteAgente)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrEstadoObsoleto
		}
		return nil
	})
}

func (r *cajaRepo) FindVerificacion(ctx context.Context, sesionID uuid.UUID) (*model.VerificacionCaja, error) {
	var v model.VerificacionCaja
	if err := r.db.WithContext(ctx).First(&v, "sesion_caja_id = ?", sesionID).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r *cajaRepo) ListSesiones(ctx context.Context, q SesionQuery) ([]model.SesionCaja, int64, error) {
	var sesiones []model.SesionCaja
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.SesionCaja{})
	if q.PuntoDeVentaID != nil {
		tx = tx.Where("punto_de_venta_id = ?", *q.PuntoDeVentaID)
	}
	if q.SucursalID != nil {
		tx = tx.Where("sucursal_id = ?", *q.SucursalID)
	}
	if q.Estado != "" {
		tx = tx.Where("estado = ?", q.Estado)
	}
	if q.Desde != nil {
		tx = tx.Where("opened_at >= ?", *q.Desde)
	}
	if q.Hasta != nil {
		tx = tx.Where("opened_at < ?", *q.Hasta)
	}

	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (q.Page - 1) * q.Limit
	err := tx.Order("opened_at DESC").Offset(offset).Limit(q.Limit).Find(&sesiones).Error
	return sesiones, total, err
}

func (r *cajaRepo) VerificadasEntre(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.VerificacionCaja{}).
		Where("sesion_caja_id IN ?", ids).
		Pluck("sesion_caja_id", &found).Error
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}
