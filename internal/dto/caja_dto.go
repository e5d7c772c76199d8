package dto

import (
	"arqueo/internal/conteo"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ConteoRequest is a bills + coins count keyed by face value.
type ConteoRequest struct {
	Billetes conteo.Conteo `json:"billetes"`
	Monedas  conteo.Conteo `json:"monedas"`
}

type AbrirSesionRequest struct {
	PuntoDeVentaID    string        `json:"punto_de_venta_id"  validate:"required,uuid"`
	CodigoEmpleado    string        `json:"codigo_empleado"    validate:"required,max=20"`
	ReferenciaExterna string        `json:"referencia_externa" validate:"max=64"`
	CambioInicial     ConteoRequest `json:"cambio_inicial"`
	Observaciones     *string       `json:"observaciones"`
}

type TotalMetodoPagoRequest struct {
	MetodoID    string          `json:"metodo_id"   validate:"max=40"`
	Nombre      string          `json:"nombre"      validate:"required,max=80"`
	Monto       decimal.Decimal `json:"monto"       validate:"min=0"`
	Operaciones int             `json:"operaciones" validate:"min=0"`
}

// CierreRequest is the counted closing block, used by both the cashier's
// close and the supervisor's verification.
type CierreRequest struct {
	Billetes          conteo.Conteo            `json:"billetes"`
	Monedas           conteo.Conteo            `json:"monedas"`
	TotalesMetodoPago []TotalMetodoPagoRequest `json:"totales_metodo_pago" validate:"dive"`
	CambioDejado      conteo.Conteo            `json:"cambio_dejado"`
	Observaciones     *string                  `json:"observaciones"`
}

type CerrarSesionRequest struct {
	CierreRequest
	CodigoEmpleado string `json:"codigo_empleado" validate:"required,max=20"`
}

type VerificarSesionRequest struct {
	CierreRequest
}

// SesionFilter holds the query parameters of GET /v1/caja/sesiones.
type SesionFilter struct {
	PuntoDeVentaID string `form:"punto_de_venta_id" validate:"omitempty,uuid"`
	SucursalID     string `form:"sucursal_id"       validate:"omitempty,uuid"`
	Estado         string `form:"estado"            validate:"omitempty,oneof=abierta pendiente_supervisor pendiente_agente"`
	Desde          string `form:"desde"             validate:"omitempty,datetime=2006-01-02"`
	Hasta          string `form:"hasta"             validate:"omitempty,datetime=2006-01-02"`
	Page           int    `form:"page"              validate:"omitempty,min=1"`
	Limit          int    `form:"limit"             validate:"omitempty,min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ConteoResponse struct {
	Billetes conteo.Conteo   `json:"billetes"`
	Monedas  conteo.Conteo   `json:"monedas"`
	Total    decimal.Decimal `json:"total"`
}

type TotalMetodoPagoResponse struct {
	MetodoID    string          `json:"metodo_id"`
	Nombre      string          `json:"nombre"`
	Monto       decimal.Decimal `json:"monto"`
	Operaciones int             `json:"operaciones"`
}

type CierreResponse struct {
	Billetes          conteo.Conteo             `json:"billetes"`
	Monedas           conteo.Conteo             `json:"monedas"`
	TotalEfectivo     decimal.Decimal           `json:"total_efectivo"`
	TotalesMetodoPago []TotalMetodoPagoResponse `json:"totales_metodo_pago"`
	TotalGeneral      decimal.Decimal           `json:"total_general"`
	CambioDejado      ConteoResponse            `json:"cambio_dejado"`
	EfectivoRetirado  decimal.Decimal           `json:"efectivo_retirado"`
}

type VerificacionResponse struct {
	ID            string         `json:"id"`
	UsuarioID     string         `json:"usuario_id"`
	Cierre        CierreResponse `json:"cierre"`
	Observaciones *string        `json:"observaciones"`
	CreatedAt     string         `json:"created_at"`
}

// SesionResponse is the projected view of a session. While the session awaits
// its blind recount, readers other than the cashier get Oculta=true and the
// closing fields stay nil (closed_at and the closing identities included).
type SesionResponse struct {
	ID                    string             `json:"id"`
	PuntoDeVentaID        string             `json:"punto_de_venta_id"`
	SucursalID            string             `json:"sucursal_id"`
	UsuarioID             string             `json:"usuario_id"`
	EmpleadoID            string             `json:"empleado_id"`
	ReferenciaExterna     string             `json:"referencia_externa"`
	CambioInicial         ConteoResponse     `json:"cambio_inicial"`
	DiscrepanciaApertura  conteo.Diferencias `json:"discrepancia_apertura"`
	DiscrepanciaOculta    bool               `json:"discrepancia_oculta,omitempty"`
	Estado                string             `json:"estado"`
	ObservacionesApertura *string            `json:"observaciones_apertura"`
	OpenedAt              string             `json:"opened_at"`
	ClosedAt              *string            `json:"closed_at"`
	EmpleadoCierreID      *string            `json:"empleado_cierre_id"`
	UsuarioCierreID       *string            `json:"usuario_cierre_id"`

	Oculta               bool                  `json:"oculta"`
	Cierre               *CierreResponse       `json:"cierre"`
	ObservacionesCierre  *string               `json:"observaciones_cierre"`
	Verificacion         *VerificacionResponse `json:"verificacion"`
	ContinuidadSiguiente conteo.Diferencias    `json:"continuidad_siguiente,omitempty"`
}

type SesionListResponse struct {
	Data       []SesionResponse `json:"data"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
}
