package repository

import (
	"context"

	"arqueo/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferenciaRepository reads the externally owned reference tables
// (employees, registers, denominations).
type ReferenciaRepository interface {
	FindEmpleadoActivoByCodigo(ctx context.Context, codigo string) (*model.Empleado, error)
	FindPuntoDeVentaByID(ctx context.Context, id uuid.UUID) (*model.PuntoDeVenta, error)
	ListDenominaciones(ctx context.Context) ([]model.Denominacion, error)
	// UpsertReferencia loads reference rows, used by the seed command only.
	UpsertReferencia(ctx context.Context, denoms []model.Denominacion, pdvs []model.PuntoDeVenta, emps []model.Empleado) error
}

type referenciaRepo struct{ db *gorm.DB }

func NewReferenciaRepository(db *gorm.DB) ReferenciaRepository { return &referenciaRepo{db: db} }

func (r *referenciaRepo) FindEmpleadoActivoByCodigo(ctx context.Context, codigo string) (*model.Empleado, error) {
	var e model.Empleado
	err := r.db.WithContext(ctx).Where("codigo = ? AND activo = true", codigo).First(&e).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *referenciaRepo) FindPuntoDeVentaByID(ctx context.Context, id uuid.UUID) (*model.PuntoDeVenta, error) {
	var p model.PuntoDeVenta
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *referenciaRepo) ListDenominaciones(ctx context.Context) ([]model.Denominacion, error) {
	var ds []model.Denominacion
	err := r.db.WithContext(ctx).Order("tipo ASC, orden ASC").Find(&ds).Error
	return ds, err
}

func (r *referenciaRepo) UpsertReferencia(ctx context.Context, denoms []model.Denominacion, pdvs []model.PuntoDeVenta, emps []model.Empleado) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(denoms) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tipo"}, {Name: "valor"}},
				DoUpdates: clause.AssignmentColumns([]string{"activa", "orden"}),
			}).Create(&denoms).Error
			if err != nil {
				return err
			}
		}
		if len(pdvs) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&pdvs).Error; err != nil {
				return err
			}
		}
		if len(emps) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "codigo"}},
				DoUpdates: clause.AssignmentColumns([]string{"nombre", "grupo_sucursal", "activo"}),
			}).Create(&emps).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
