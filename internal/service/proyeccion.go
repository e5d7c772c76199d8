package service

import (
	"time"

	"arqueo/internal/conteo"
	"arqueo/internal/dto"
	"arqueo/internal/model"

	"github.com/google/uuid"
)

// ── Blind projection ─────────────────────────────────────────────────────────
// A session waiting for its supervisor recount hides the cashier's counted
// figures from everyone but the cashier. Every read path builds its response
// through these functions; nothing else copies closing data into a DTO.

// SesionOculta reports whether lector must get the reduced projection of s.
func SesionOculta(s *model.SesionCaja, verificada bool, lector Actor) bool {
	return s.Estado == model.EstadoPendienteSupervisor && !verificada && lector.UsuarioID != s.UsuarioID
}

// RetiroOculto applies the same rule to a withdrawal, keyed on the withdrawal's
// own verification.
func RetiroOculto(r *model.Retiro, s *model.SesionCaja, lector Actor) bool {
	return s.Estado == model.EstadoPendienteSupervisor && r.Verificacion == nil && lector.UsuarioID != s.UsuarioID
}

// ProyectarSesion builds the response for lector. v may be nil even when
// verificada is true (list views do not load verifications).
func ProyectarSesion(s *model.SesionCaja, verificada bool, v *model.VerificacionCaja, lector Actor) dto.SesionResponse {
	resp := dto.SesionResponse{
		ID:                s.ID.String(),
		PuntoDeVentaID:    s.PuntoDeVentaID.String(),
		SucursalID:        s.SucursalID.String(),
		UsuarioID:         s.UsuarioID.String(),
		EmpleadoID:        s.EmpleadoID.String(),
		ReferenciaExterna: s.ReferenciaExterna,
		CambioInicial: dto.ConteoResponse{
			Billetes: s.CambioInicialBilletes,
			Monedas:  s.CambioInicialMonedas,
			Total:    s.CambioInicialTotal,
		},
		DiscrepanciaApertura:  s.DiscrepanciaApertura,
		Estado:                s.Estado,
		ObservacionesApertura: s.ObservacionesApertura,
		OpenedAt:              s.OpenedAt.Format(time.RFC3339),
	}

	if SesionOculta(s, verificada || v != nil, lector) {
		resp.Oculta = true
		return resp
	}

	resp.ClosedAt = formatTime(s.ClosedAt)
	resp.EmpleadoCierreID = uuidString(s.EmpleadoCierreID)
	resp.UsuarioCierreID = uuidString(s.UsuarioCierreID)
	if s.Estado != model.EstadoAbierta {
		c := cierreResponse(s.Cierre)
		resp.Cierre = &c
		resp.ObservacionesCierre = s.ObservacionesCierre
	}
	if v != nil {
		resp.Verificacion = &dto.VerificacionResponse{
			ID:            v.ID.String(),
			UsuarioID:     v.UsuarioID.String(),
			Cierre:        cierreResponse(v.Cierre),
			Observaciones: v.Observaciones,
			CreatedAt:     v.CreatedAt.Format(time.RFC3339),
		}
	}
	return resp
}

// OcultarDiscrepancia withholds the opening discrepancy of a session whose
// predecessor is still blind for the reader. Its Anterior counts are that
// predecessor's change left.
func OcultarDiscrepancia(resp *dto.SesionResponse) {
	if resp.DiscrepanciaApertura == nil {
		return
	}
	resp.DiscrepanciaApertura = nil
	resp.DiscrepanciaOculta = true
}

// ProyectarRetiro builds the response for one withdrawal of s.
func ProyectarRetiro(r *model.Retiro, s *model.SesionCaja, lector Actor) dto.RetiroResponse {
	resp := dto.RetiroResponse{
		ID:           r.ID.String(),
		SesionCajaID: r.SesionCajaID.String(),
		Secuencia:    r.Secuencia,
		EmpleadoID:   r.EmpleadoID.String(),
		UsuarioID:    r.UsuarioID.String(),
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
	if RetiroOculto(r, s, lector) {
		resp.Oculto = true
		return resp
	}

	total := r.Total
	resp.Billetes = r.Billetes
	resp.Monedas = r.Monedas
	resp.Total = &total
	resp.Observaciones = r.Observaciones
	if v := r.Verificacion; v != nil {
		resp.Verificacion = &dto.VerificacionRetiroResponse{
			ID:            v.ID.String(),
			UsuarioID:     v.UsuarioID.String(),
			Billetes:      v.Billetes,
			Monedas:       v.Monedas,
			Total:         v.Total,
			Observaciones: v.Observaciones,
			CreatedAt:     v.CreatedAt.Format(time.RFC3339),
		}
	}
	return resp
}

func cierreResponse(c model.Cierre) dto.CierreResponse {
	metodos := make([]dto.TotalMetodoPagoResponse, len(c.TotalesMetodoPago))
	for i, m := range c.TotalesMetodoPago {
		metodos[i] = dto.TotalMetodoPagoResponse{
			MetodoID:    m.MetodoID,
			Nombre:      m.Nombre,
			Monto:       m.Monto,
			Operaciones: m.Operaciones,
		}
	}
	return dto.CierreResponse{
		Billetes:          orEmpty(c.Billetes),
		Monedas:           orEmpty(c.Monedas),
		TotalEfectivo:     c.TotalEfectivo,
		TotalesMetodoPago: metodos,
		TotalGeneral:      c.TotalGeneral,
		CambioDejado: dto.ConteoResponse{
			Billetes: orEmpty(c.CambioDejado),
			Monedas:  conteo.Conteo{},
			Total:    c.CambioDejadoTotal,
		},
		EfectivoRetirado: c.EfectivoRetirado,
	}
}

func orEmpty(c conteo.Conteo) conteo.Conteo {
	if c == nil {
		return conteo.Conteo{}
	}
	return c
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
