package model

import (
	"time"

	"arqueo/internal/conteo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Retiro is a partial cash extraction recorded while a session is open.
// Secuencia is unique per session and starts at 1. Immutable once created.
type Retiro struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SesionCajaID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_retiro_sesion_secuencia"`
	Secuencia     int             `gorm:"not null;uniqueIndex:idx_retiro_sesion_secuencia"`
	Billetes      conteo.Conteo   `gorm:"type:jsonb;serializer:json"`
	Monedas       conteo.Conteo   `gorm:"type:jsonb;serializer:json"`
	Total         decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	EmpleadoID    uuid.UUID       `gorm:"type:uuid;not null"`
	UsuarioID     uuid.UUID       `gorm:"type:uuid;not null"`
	Observaciones *string
	CreatedAt     time.Time

	Verificacion *VerificacionRetiro `gorm:"foreignKey:RetiroID"`
}

func (Retiro) TableName() string { return "retiros" }

// VerificacionRetiro is the one-time blind recount of a withdrawal.
type VerificacionRetiro struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RetiroID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	UsuarioID     uuid.UUID       `gorm:"type:uuid;not null"`
	Billetes      conteo.Conteo   `gorm:"type:jsonb;serializer:json"`
	Monedas       conteo.Conteo   `gorm:"type:jsonb;serializer:json"`
	Total         decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Observaciones *string
	CreatedAt     time.Time
}

func (VerificacionRetiro) TableName() string { return "verificaciones_retiro" }
