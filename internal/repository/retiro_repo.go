package repository

import (
	"context"

	"arqueo/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RetiroRepository interface {
	MaxSecuencia(ctx context.Context, sesionID uuid.UUID) (int, error)
	// CreateRetiro share-locks the owning session, re-checks that it is abierta
	// (ErrEstadoObsoleto otherwise) and inserts r. A taken (sesion, secuencia)
	// pair yields ErrDuplicate.
	CreateRetiro(ctx context.Context, r *model.Retiro) error
	FindRetiroByID(ctx context.Context, id uuid.UUID) (*model.Retiro, error)
	ListRetiros(ctx context.Context, sesionID uuid.UUID) ([]model.Retiro, error)
	// VerificarRetiro returns ErrDuplicate when the withdrawal is already verified.
	VerificarRetiro(ctx context.Context, v *model.VerificacionRetiro) error
}

type retiroRepo struct{ db *gorm.DB }

func NewRetiroRepository(db *gorm.DB) RetiroRepository { return &retiroRepo{db: db} }

func (r *retiroRepo) MaxSecuencia(ctx context.Context, sesionID uuid.UUID) (int, error) {
	var ultima int
	err := r.db.WithContext(ctx).
		Model(&model.Retiro{}).
		Where("sesion_caja_id = ?", sesionID).
		Select("COALESCE(MAX(secuencia), 0)").
		Scan(&ultima).Error
	return ultima, err
}

func (r *retiroRepo) CreateRetiro(ctx context.Context, ret *model.Retiro) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s model.SesionCaja
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id", "estado").
			First(&s, "id = ?", ret.SesionCajaID).Error
		if err != nil {
			return translate(err)
		}
		if s.Estado != model.EstadoAbierta {
			return ErrEstadoObsoleto
		}
		return translate(tx.Omit("Verificacion").Create(ret).Error)
	})
}

func (r *retiroRepo) FindRetiroByID(ctx context.Context, id uuid.UUID) (*model.Retiro, error) {
	var ret model.Retiro
	if err := r.db.WithContext(ctx).Preload("Verificacion").First(&ret, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &ret, nil
}

func (r *retiroRepo) ListRetiros(ctx context.Context, sesionID uuid.UUID) ([]model.Retiro, error) {
	var retiros []model.Retiro
	err := r.db.WithContext(ctx).
		Preload("Verificacion").
		Where("sesion_caja_id = ?", sesionID).
		Order("secuencia ASC").
		Find(&retiros).Error
	return retiros, err
}

func (r *retiroRepo) VerificarRetiro(ctx context.Context, v *model.VerificacionRetiro) error {
	return translate(r.db.WithContext(ctx).Create(v).Error)
}
