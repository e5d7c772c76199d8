package dto

import "arqueo/internal/conciliacion"

type ConciliacionResponse struct {
	SesionCajaID      string `json:"sesion_caja_id"`
	ReferenciaExterna string `json:"referencia_externa"`
	Estado            string `json:"estado"`
	// CajeroOculto is true while the session awaits its blind recount and the
	// reader is not the cashier.
	CajeroOculto bool `json:"cajero_oculto"`
	conciliacion.Resultado
}
