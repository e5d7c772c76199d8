package service

import (
	"context"
	"errors"
	"time"

	"arqueo/internal/apierror"
	"arqueo/internal/conteo"
	"arqueo/internal/dto"
	"arqueo/internal/model"
	"arqueo/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type RetiroService interface {
	CrearRetiro(ctx context.Context, actor Actor, sesionID uuid.UUID, req dto.CrearRetiroRequest) (*dto.RetiroResponse, error)
	VerificarRetiro(ctx context.Context, actor Actor, retiroID uuid.UUID, req dto.VerificarRetiroRequest) (*dto.RetiroResponse, error)
	ListarRetiros(ctx context.Context, actor Actor, sesionID uuid.UUID) ([]dto.RetiroResponse, error)
}

type retiroService struct {
	repo        repository.RetiroRepository
	cajaRepo    repository.CajaRepository
	dir         Directorio
	maxIntentos int
	now         func() time.Time
}

// NewRetiroService builds the withdrawal service. maxIntentos bounds how many
// sequence numbers CrearRetiro tries before giving up with Conflict.
func NewRetiroService(repo repository.RetiroRepository, cajaRepo repository.CajaRepository, dir Directorio, maxIntentos int) RetiroService {
	if maxIntentos < 1 {
		maxIntentos = 50
	}
	return &retiroService{
		repo:        repo,
		cajaRepo:    cajaRepo,
		dir:         dir,
		maxIntentos: maxIntentos,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ── CrearRetiro ───────────────────────────────────────────────────────────────
// Secuencia is 1 + max(secuencia). Two concurrent requests may read the same
// max; the unique (sesion_caja_id, secuencia) index rejects the loser, which
// re-reads and tries the next number.

func (s *retiroService) CrearRetiro(ctx context.Context, actor Actor, sesionID uuid.UUID, req dto.CrearRetiroRequest) (*dto.RetiroResponse, error) {
	cat, err := s.dir.Catalogo(ctx)
	if err != nil {
		return nil, err
	}
	billetes, err := leerConteo(req.Billetes, cat, conteo.Billete, "billetes")
	if err != nil {
		return nil, err
	}
	monedas, err := leerConteo(req.Monedas, cat, conteo.Moneda, "monedas")
	if err != nil {
		return nil, err
	}
	total := totalConteo(billetes, monedas, cat)
	if !total.IsPositive() {
		return nil, apierror.Validation("el total del retiro debe ser mayor a cero")
	}

	sesion, err := s.cajaRepo.FindSesionByID(ctx, sesionID)
	if err != nil {
		return nil, storageErr(err, "sesión de caja no encontrada")
	}
	if err := actor.exigirSucursal(sesion.SucursalID); err != nil {
		return nil, err
	}
	if sesion.Estado != model.EstadoAbierta {
		return nil, apierror.Conflict("la sesión no está abierta")
	}
	emp, err := s.dir.ResolverEmpleado(ctx, req.CodigoEmpleado)
	if err != nil {
		return nil, err
	}

	retiro := &model.Retiro{
		SesionCajaID:  sesion.ID,
		Billetes:      billetes,
		Monedas:       monedas,
		Total:         total,
		EmpleadoID:    emp.ID,
		UsuarioID:     actor.UsuarioID,
		Observaciones: req.Observaciones,
	}
	for intento := 1; intento <= s.maxIntentos; intento++ {
		ultima, err := s.repo.MaxSecuencia(ctx, sesion.ID)
		if err != nil {
			return nil, apierror.Internal(err, "error asignando secuencia")
		}
		retiro.ID = uuid.New()
		retiro.Secuencia = ultima + 1
		retiro.CreatedAt = s.now()

		err = s.repo.CreateRetiro(ctx, retiro)
		switch {
		case err == nil:
			resp := ProyectarRetiro(retiro, sesion, actor)
			return &resp, nil
		case errors.Is(err, repository.ErrDuplicate):
			log.Debug().Str("sesion_id", sesion.ID.String()).Int("secuencia", retiro.Secuencia).Int("intento", intento).Msg("retiro: secuencia tomada, reintentando")
			continue
		case errors.Is(err, repository.ErrEstadoObsoleto):
			return nil, apierror.Conflict("la sesión no está abierta")
		default:
			return nil, storageErr(err, "sesión de caja no encontrada")
		}
	}
	return nil, apierror.Conflict("no se pudo asignar una secuencia al retiro, reintente")
}

// ── VerificarRetiro ───────────────────────────────────────────────────────────

func (s *retiroService) VerificarRetiro(ctx context.Context, actor Actor, retiroID uuid.UUID, req dto.VerificarRetiroRequest) (*dto.RetiroResponse, error) {
	if !actor.PuedeVerificar() {
		return nil, apierror.Forbidden("solo un supervisor puede verificar retiros")
	}
	retiro, err := s.repo.FindRetiroByID(ctx, retiroID)
	if err != nil {
		return nil, storageErr(err, "retiro no encontrado")
	}
	sesion, err := s.cajaRepo.FindSesionByID(ctx, retiro.SesionCajaID)
	if err != nil {
		return nil, storageErr(err, "sesión de caja no encontrada")
	}
	if err := actor.exigirSucursal(sesion.SucursalID); err != nil {
		return nil, err
	}
	if sesion.FueOperadaPor(actor.UsuarioID) || retiro.UsuarioID == actor.UsuarioID {
		return nil, apierror.Forbidden("el cajero de la sesión no puede verificar sus retiros")
	}
	if retiro.Verificacion != nil {
		return nil, apierror.Conflict("el retiro ya fue verificado")
	}

	cat, err := s.dir.Catalogo(ctx)
	if err != nil {
		return nil, err
	}
	billetes, err := leerConteo(req.Billetes, cat, conteo.Billete, "billetes")
	if err != nil {
		return nil, err
	}
	monedas, err := leerConteo(req.Monedas, cat, conteo.Moneda, "monedas")
	if err != nil {
		return nil, err
	}

	v := &model.VerificacionRetiro{
		ID:            uuid.New(),
		RetiroID:      retiro.ID,
		UsuarioID:     actor.UsuarioID,
		Billetes:      billetes,
		Monedas:       monedas,
		Total:         totalConteo(billetes, monedas, cat),
		Observaciones: req.Observaciones,
		CreatedAt:     s.now(),
	}
	if err := s.repo.VerificarRetiro(ctx, v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apierror.Conflict("el retiro ya fue verificado")
		}
		return nil, apierror.Internal(err, "error registrando la verificación del retiro")
	}

	retiro.Verificacion = v
	resp := ProyectarRetiro(retiro, sesion, actor)
	return &resp, nil
}

// ── ListarRetiros ─────────────────────────────────────────────────────────────

func (s *retiroService) ListarRetiros(ctx context.Context, actor Actor, sesionID uuid.UUID) ([]dto.RetiroResponse, error) {
	sesion, err := s.cajaRepo.FindSesionByID(ctx, sesionID)
	if err != nil {
		return nil, storageErr(err, "sesión de caja no encontrada")
	}
	if err := actor.exigirSucursal(sesion.SucursalID); err != nil {
		return nil, err
	}
	retiros, err := s.repo.ListRetiros(ctx, sesion.ID)
	if err != nil {
		return nil, apierror.Internal(err, "error listando retiros")
	}
	out := make([]dto.RetiroResponse, len(retiros))
	for i := range retiros {
		out[i] = ProyectarRetiro(&retiros[i], sesion, actor)
	}
	return out, nil
}
