package model

import (
	"arqueo/internal/conteo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Roles carried in the identity context.
const (
	RolCajero        = "cajero"
	RolSupervisor    = "supervisor"
	RolAdministrador = "administrador"
)

// Reference entities below are owned by external systems (HR directory,
// branch registry, treasury). This service only reads them.

// Empleado is a physical employee resolved by the code typed at the register.
type Empleado struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Codigo        string    `gorm:"type:varchar(20);uniqueIndex;not null"`
	Nombre        string    `gorm:"not null"`
	GrupoSucursal string    `gorm:"type:varchar(40)"`
	Activo        bool      `gorm:"not null;default:true"`
}

func (Empleado) TableName() string { return "empleados" }

// PuntoDeVenta is a physical register belonging to a branch.
type PuntoDeVenta struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SucursalID uuid.UUID `gorm:"type:uuid;not null;index"`
	Nombre     string    `gorm:"not null"`
}

func (PuntoDeVenta) TableName() string { return "puntos_de_venta" }

// Denominacion is a row of the bill/coin catalog.
type Denominacion struct {
	ID     uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Valor  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Tipo   string          `gorm:"type:varchar(10);not null"` // billete | moneda
	Activa bool            `gorm:"not null;default:true"`
	Orden  int             `gorm:"not null;default:0"`
}

func (Denominacion) TableName() string { return "denominaciones" }

func (d Denominacion) ToConteo() conteo.Denominacion {
	return conteo.Denominacion{Valor: d.Valor, Tipo: conteo.Tipo(d.Tipo), Activa: d.Activa, Orden: d.Orden}
}
