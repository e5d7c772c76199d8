package service

import (
	"context"
	"errors"

	"arqueo/internal/apierror"
	"arqueo/internal/conciliacion"
	"arqueo/internal/dto"
	"arqueo/internal/infra"
	"arqueo/internal/model"
	"arqueo/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type ConciliacionService interface {
	ObtenerConciliacion(ctx context.Context, actor Actor, sesionID uuid.UUID) (*dto.ConciliacionResponse, error)
}

type conciliacionService struct {
	cajaRepo   repository.CajaRepository
	retiroRepo repository.RetiroRepository
	ledger     LedgerExterno
	motor      *conciliacion.Motor
}

// NewConciliacionService wires the engine. ledger may be nil when no external
// ledger is configured; the external column is then reported unavailable.
func NewConciliacionService(cajaRepo repository.CajaRepository, retiroRepo repository.RetiroRepository, ledger LedgerExterno, motor *conciliacion.Motor) ConciliacionService {
	if motor == nil {
		motor = conciliacion.NewMotor(nil)
	}
	return &conciliacionService{cajaRepo: cajaRepo, retiroRepo: retiroRepo, ledger: ledger, motor: motor}
}

func (s *conciliacionService) ObtenerConciliacion(ctx context.Context, actor Actor, sesionID uuid.UUID) (*dto.ConciliacionResponse, error) {
	sesion, err := s.cajaRepo.FindSesionByID(ctx, sesionID)
	if err != nil {
		return nil, storageErr(err, "sesión de caja no encontrada")
	}
	if err := actor.exigirSucursal(sesion.SucursalID); err != nil {
		return nil, err
	}
	if sesion.Estado == model.EstadoAbierta {
		return nil, apierror.Conflict("la sesión todavía está abierta")
	}

	v, err := s.cajaRepo.FindVerificacion(ctx, sesion.ID)
	if errors.Is(err, repository.ErrNotFound) {
		v, err = nil, nil
	}
	if err != nil {
		return nil, apierror.Internal(err, "error consultando la verificación")
	}
	retiros, err := s.retiroRepo.ListRetiros(ctx, sesion.ID)
	if err != nil {
		return nil, apierror.Internal(err, "error listando retiros")
	}

	in := conciliacion.Entrada{}
	oculto := SesionOculta(sesion, v != nil, actor)
	if !oculto {
		in.Cajero = fuente(sesion, sesion.Cierre, retiros, false)
	}
	if v != nil {
		in.Supervisor = fuente(sesion, v.Cierre, retiros, true)
	}
	in.Externo, in.ErrorExterno = s.externo(ctx, sesion)

	return &dto.ConciliacionResponse{
		SesionCajaID:      sesion.ID.String(),
		ReferenciaExterna: sesion.ReferenciaExterna,
		Estado:            sesion.Estado,
		CajeroOculto:      oculto,
		Resultado:         s.motor.Construir(in),
	}, nil
}

// externo fetches the ledger view. Failures never fail the request; they are
// reported next to the local columns.
func (s *conciliacionService) externo(ctx context.Context, sesion *model.SesionCaja) (*conciliacion.Externo, string) {
	if s.ledger == nil {
		return nil, "sistema de ventas no configurado"
	}
	ext, err := s.ledger.Obtener(ctx, sesion.ReferenciaExterna)
	if err == nil {
		return ext, ""
	}
	logger := log.Warn().Err(err).Str("sesion_id", sesion.ID.String()).Str("referencia", sesion.ReferenciaExterna)
	switch {
	case errors.Is(err, infra.ErrLedgerNotFound):
		logger.Msg("conciliacion: referencia sin cierre en el sistema de ventas")
		return nil, "la referencia externa no existe en el sistema de ventas"
	case errors.Is(err, infra.ErrCircuitOpen):
		logger.Msg("conciliacion: ledger circuit open")
		return nil, "sistema de ventas no disponible"
	default:
		logger.Msg("conciliacion: ledger fetch failed")
		return nil, "no se pudo consultar el sistema de ventas"
	}
}

// fuente builds one local source. Net cash is what entered the drawer during
// the shift:
//
//	(efectivo_retirado + Σ retiros) − (cambio_inicial − cambio_dejado)
//
// The supervisor column uses each withdrawal's verified total when there is one.
func fuente(s *model.SesionCaja, c model.Cierre, retiros []model.Retiro, verificados bool) *conciliacion.Fuente {
	sumRetiros := decimal.Zero
	for _, r := range retiros {
		total := r.Total
		if verificados && r.Verificacion != nil {
			total = r.Verificacion.Total
		}
		sumRetiros = sumRetiros.Add(total)
	}
	neto := c.EfectivoRetirado.Add(sumRetiros).Sub(s.CambioInicialTotal.Sub(c.CambioDejadoTotal))

	metodos := make([]conciliacion.Metodo, len(c.TotalesMetodoPago))
	for i, m := range c.TotalesMetodoPago {
		metodos[i] = conciliacion.Metodo{ID: m.MetodoID, Nombre: m.Nombre, Monto: m.Monto, Operaciones: m.Operaciones}
	}
	return &conciliacion.Fuente{Efectivo: neto, Metodos: metodos}
}
