package dto

import (
	"arqueo/internal/conteo"

	"github.com/shopspring/decimal"
)

type CrearRetiroRequest struct {
	Billetes       conteo.Conteo `json:"billetes"`
	Monedas        conteo.Conteo `json:"monedas"`
	CodigoEmpleado string        `json:"codigo_empleado" validate:"required,max=20"`
	Observaciones  *string       `json:"observaciones"`
}

type VerificarRetiroRequest struct {
	Billetes      conteo.Conteo `json:"billetes"`
	Monedas       conteo.Conteo `json:"monedas"`
	Observaciones *string       `json:"observaciones"`
}

type VerificacionRetiroResponse struct {
	ID            string          `json:"id"`
	UsuarioID     string          `json:"usuario_id"`
	Billetes      conteo.Conteo   `json:"billetes"`
	Monedas       conteo.Conteo   `json:"monedas"`
	Total         decimal.Decimal `json:"total"`
	Observaciones *string         `json:"observaciones"`
	CreatedAt     string          `json:"created_at"`
}

// RetiroResponse is the projected view of a withdrawal. Billetes, Monedas,
// Total and Observaciones are nil while it is withheld.
type RetiroResponse struct {
	ID            string                      `json:"id"`
	SesionCajaID  string                      `json:"sesion_caja_id"`
	Secuencia     int                         `json:"secuencia"`
	EmpleadoID    string                      `json:"empleado_id"`
	UsuarioID     string                      `json:"usuario_id"`
	CreatedAt     string                      `json:"created_at"`
	Oculto        bool                        `json:"oculto"`
	Billetes      conteo.Conteo               `json:"billetes"`
	Monedas       conteo.Conteo               `json:"monedas"`
	Total         *decimal.Decimal            `json:"total"`
	Observaciones *string                     `json:"observaciones"`
	Verificacion  *VerificacionRetiroResponse `json:"verificacion"`
}
