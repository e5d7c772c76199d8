package model

import (
	"time"

	"arqueo/internal/conteo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados of a cash session. pendiente_agente is terminal for this service.
const (
	EstadoAbierta             = "abierta"
	EstadoPendienteSupervisor = "pendiente_supervisor"
	EstadoPendienteAgente     = "pendiente_agente"
)

// TotalMetodoPago is a non-cash payment total declared at close.
type TotalMetodoPago struct {
	MetodoID    string          `json:"metodo_id"`
	Nombre      string          `json:"nombre"`
	Monto       decimal.Decimal `json:"monto"`
	Operaciones int             `json:"operaciones"`
}

// Cierre is the counted closing block. It is shared by the cashier's close and
// the supervisor's independent recount so both obey the same arithmetic:
//
//	TotalEfectivo    = Σ valor × cantidad (billetes + monedas)
//	TotalGeneral     = TotalEfectivo + Σ TotalesMetodoPago.Monto
//	EfectivoRetirado = TotalEfectivo − CambioDejadoTotal ≥ 0
type Cierre struct {
	Billetes          conteo.Conteo     `gorm:"type:jsonb;serializer:json"`
	Monedas           conteo.Conteo     `gorm:"type:jsonb;serializer:json"`
	TotalEfectivo     decimal.Decimal   `gorm:"type:decimal(14,2);not null;default:0"`
	TotalesMetodoPago []TotalMetodoPago `gorm:"type:jsonb;serializer:json"`
	TotalGeneral      decimal.Decimal   `gorm:"type:decimal(14,2);not null;default:0"`
	CambioDejado      conteo.Conteo     `gorm:"type:jsonb;serializer:json"`
	CambioDejadoTotal decimal.Decimal   `gorm:"type:decimal(14,2);not null;default:0"`
	EfectivoRetirado  decimal.Decimal   `gorm:"type:decimal(14,2);not null;default:0"`
}

// SesionCaja is one cash-drawer shift on a register (punto de venta).
// Rows are never deleted; they change only through close and verify.
type SesionCaja struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PuntoDeVentaID uuid.UUID `gorm:"type:uuid;not null;index"`
	SucursalID     uuid.UUID `gorm:"type:uuid;not null;index"`
	// UsuarioID is the authenticated identity that opened the session (cajero).
	UsuarioID         uuid.UUID `gorm:"type:uuid;not null"`
	EmpleadoID        uuid.UUID `gorm:"type:uuid;not null"`
	ReferenciaExterna string    `gorm:"type:varchar(64);not null"`

	CambioInicialBilletes conteo.Conteo   `gorm:"type:jsonb;serializer:json"`
	CambioInicialMonedas  conteo.Conteo   `gorm:"type:jsonb;serializer:json"`
	CambioInicialTotal    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	// DiscrepanciaApertura is nil when the opening bills match the change left
	// by the previous session on the register.
	DiscrepanciaApertura conteo.Diferencias `gorm:"type:jsonb;serializer:json"`
	// SesionAnteriorID is the session whose change left was compared at opening.
	SesionAnteriorID *uuid.UUID `gorm:"type:uuid"`

	Estado string `gorm:"type:varchar(30);not null;default:'abierta'"`

	Cierre Cierre `gorm:"embedded"`

	ObservacionesApertura *string
	ObservacionesCierre   *string
	EmpleadoCierreID      *uuid.UUID `gorm:"type:uuid"`
	UsuarioCierreID       *uuid.UUID `gorm:"type:uuid"`

	OpenedAt  time.Time
	ClosedAt  *time.Time
	CreatedAt time.Time
}

func (SesionCaja) TableName() string { return "sesiones_caja" }

// FueOperadaPor reports whether id opened or closed the session.
func (s *SesionCaja) FueOperadaPor(id uuid.UUID) bool {
	if s.UsuarioID == id {
		return true
	}
	return s.UsuarioCierreID != nil && *s.UsuarioCierreID == id
}

// VerificacionCaja is the supervisor's blind recount; at most one per session.
type VerificacionCaja struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SesionCajaID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	UsuarioID     uuid.UUID `gorm:"type:uuid;not null"`
	Cierre        Cierre    `gorm:"embedded"`
	Observaciones *string
	CreatedAt     time.Time
}

func (VerificacionCaja) TableName() string { return "verificaciones_caja" }
