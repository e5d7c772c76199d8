package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"arqueo/internal/apierror"
	"arqueo/internal/conteo"
	"arqueo/internal/dto"
	"arqueo/internal/model"
	"arqueo/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type CajaService interface {
	AbrirSesion(ctx context.Context, actor Actor, req dto.AbrirSesionRequest) (*dto.SesionResponse, error)
	CerrarSesion(ctx context.Context, actor Actor, id uuid.UUID, req dto.CerrarSesionRequest) (*dto.SesionResponse, error)
	VerificarSesion(ctx context.Context, actor Actor, id uuid.UUID, req dto.VerificarSesionRequest) (*dto.SesionResponse, error)
	ListarSesiones(ctx context.Context, actor Actor, f dto.SesionFilter) (*dto.SesionListResponse, error)
	ObtenerSesion(ctx context.Context, actor Actor, id uuid.UUID) (*dto.SesionResponse, error)
}

// AvisoCierre is told about every successful close. worker.Dispatcher
// implements it to prefetch the sales-ledger snapshot.
type AvisoCierre interface {
	SesionCerrada(ctx context.Context, sesionID uuid.UUID, referencia string) error
}

type cajaService struct {
	repo        repository.CajaRepository
	dir         Directorio
	aviso       AvisoCierre
	continuidad continuidad
	now         func() time.Time
}

// NewCajaService builds the session service. aviso may be nil.
func NewCajaService(repo repository.CajaRepository, dir Directorio, aviso AvisoCierre) CajaService {
	return &cajaService{
		repo:        repo,
		dir:         dir,
		aviso:       aviso,
		continuidad: continuidad{repo: repo},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ── AbrirSesion ───────────────────────────────────────────────────────────────
// One open session per register is enforced by uq_sesiones_caja_abierta; the
// insert itself is the check.

func (s *cajaService) AbrirSesion(ctx context.Context, actor Actor, req dto.AbrirSesionRequest) (*dto.SesionResponse, error) {
	referencia := strings.TrimSpace(req.ReferenciaExterna)
	if referencia == "" {
		return nil, apierror.Validation("referencia_externa es obligatoria")
	}
	pdvID, err := uuid.Parse(req.PuntoDeVentaID)
	if err != nil {
		return nil, apierror.Validation("punto_de_venta_id inválido")
	}

	cat, err := s.dir.Catalogo(ctx)
	if err != nil {
		return nil, err
	}
	billetes, err := leerConteo(req.CambioInicial.Billetes, cat, conteo.Billete, "cambio_inicial.billetes")
	if err != nil {
		return nil, err
	}
	monedas, err := leerConteo(req.CambioInicial.Monedas, cat, conteo.Moneda, "cambio_inicial.monedas")
	if err != nil {
		return nil, err
	}

	pdv, err := s.dir.ResolverPuntoDeVenta(ctx, pdvID)
	if err != nil {
		return nil, err
	}
	if err := actor.exigirSucursal(pdv.SucursalID); err != nil {
		return nil, err
	}
	emp, err := s.dir.ResolverEmpleado(ctx, req.CodigoEmpleado)
	if err != nil {
		return nil, err
	}

	anteriorID, discrepancia := s.continuidad.alAbrir(ctx, pdv.ID, billetes)
	sesion := &model.SesionCaja{
		ID:                    uuid.New(),
		PuntoDeVentaID:        pdv.ID,
		SucursalID:            pdv.SucursalID,
		UsuarioID:             actor.UsuarioID,
		EmpleadoID:            emp.ID,
		ReferenciaExterna:     referencia,
		CambioInicialBilletes: billetes,
		CambioInicialMonedas:  monedas,
		CambioInicialTotal:    totalConteo(billetes, monedas, cat),
		DiscrepanciaApertura:  discrepancia,
		SesionAnteriorID:      anteriorID,
		Estado:                model.EstadoAbierta,
		ObservacionesApertura: req.Observaciones,
		OpenedAt:              s.now(),
	}
	if err := s.repo.CreateSesion(ctx, sesion); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apierror.Conflict("ya existe una sesión abierta en este punto de venta")
		}
		return nil, apierror.Internal(err, "error creando la sesión")
	}

	resp := s.proyectar(ctx, sesion, false, nil, actor)
	return &resp, nil
}

// ── CerrarSesion ──────────────────────────────────────────────────────────────

func (s *cajaService) CerrarSesion(ctx context.Context, actor Actor, id uuid.UUID, req dto.CerrarSesionRequest) (*dto.SesionResponse, error) {
	sesion, err := s.repo.FindSesionByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "sesión de caja no encontrada")
	}
	if sesion.Estado != model.EstadoAbierta {
		return nil, apierror.Conflict("la sesión ya está cerrada")
	}
	if sesion.UsuarioID != actor.UsuarioID && !actor.EsAdmin() {
		return nil, apierror.Forbidden("solo el cajero que abrió la sesión puede cerrarla")
	}
	emp, err := s.dir.ResolverEmpleado(ctx, req.CodigoEmpleado)
	if err != nil {
		return nil, err
	}
	cierre, err := s.calcularCierre(ctx, req.CierreRequest)
	if err != nil {
		return nil, err
	}

	closedAt := s.now()
	usuarioID := actor.UsuarioID
	sesion.Cierre = cierre
	sesion.Estado = model.EstadoPendienteSupervisor
	sesion.ObservacionesCierre = req.Observaciones
	sesion.EmpleadoCierreID = &emp.ID
	sesion.UsuarioCierreID = &usuarioID
	sesion.ClosedAt = &closedAt

	if err := s.repo.CerrarSesion(ctx, sesion); err != nil {
		if errors.Is(err, repository.ErrEstadoObsoleto) {
			return nil, apierror.Conflict("la sesión ya está cerrada")
		}
		return nil, apierror.Internal(err, "error cerrando la sesión")
	}
	if s.aviso != nil {
		if err := s.aviso.SesionCerrada(ctx, sesion.ID, sesion.ReferenciaExterna); err != nil {
			log.Warn().Err(err).Str("sesion_id", sesion.ID.String()).Msg("close notification failed")
		}
	}

	resp := s.proyectar(ctx, sesion, false, nil, actor)
	return &resp, nil
}

// ── VerificarSesion ───────────────────────────────────────────────────────────
// The verification insert and the estado CAS share one transaction in the
// repository; the unique sesion_caja_id decides concurrent verifiers.

func (s *cajaService) VerificarSesion(ctx context.Context, actor Actor, id uuid.UUID, req dto.VerificarSesionRequest) (*dto.SesionResponse, error) {
	if !actor.PuedeVerificar() {
		return nil, apierror.Forbidden("solo un supervisor puede verificar la sesión")
	}
	sesion, err := s.repo.FindSesionByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "sesión de caja no encontrada")
	}
	if err := actor.exigirSucursal(sesion.SucursalID); err != nil {
		return nil, err
	}
	if sesion.FueOperadaPor(actor.UsuarioID) {
		return nil, apierror.Forbidden("quien abrió o cerró la sesión no puede verificarla")
	}
	if sesion.Estado != model.EstadoPendienteSupervisor {
		if sesion.Estado == model.EstadoAbierta {
			return nil, apierror.Conflict("la sesión todavía está abierta")
		}
		return nil, apierror.Conflict("la sesión ya fue verificada")
	}

	cierre, err := s.calcularCierre(ctx, req.CierreRequest)
	if err != nil {
		return nil, err
	}
	v := &model.VerificacionCaja{
		ID:            uuid.New(),
		SesionCajaID:  sesion.ID,
		UsuarioID:     actor.UsuarioID,
		Cierre:        cierre,
		Observaciones: req.Observaciones,
		CreatedAt:     s.now(),
	}
	if err := s.repo.VerificarSesion(ctx, v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrEstadoObsoleto) {
			return nil, apierror.Conflict("la sesión ya fue verificada")
		}
		return nil, apierror.Internal(err, "error registrando la verificación")
	}

	sesion.Estado = model.EstadoPendienteAgente
	resp := s.proyectar(ctx, sesion, true, v, actor)
	return &resp, nil
}

// ── ListarSesiones ────────────────────────────────────────────────────────────

func (s *cajaService) ListarSesiones(ctx context.Context, actor Actor, f dto.SesionFilter) (*dto.SesionListResponse, error) {
	q := repository.SesionQuery{Estado: f.Estado, Page: f.Page, Limit: f.Limit}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 50
	}
	if f.PuntoDeVentaID != "" {
		id, err := uuid.Parse(f.PuntoDeVentaID)
		if err != nil {
			return nil, apierror.Validation("punto_de_venta_id inválido")
		}
		q.PuntoDeVentaID = &id
	}
	if f.SucursalID != "" {
		id, err := uuid.Parse(f.SucursalID)
		if err != nil {
			return nil, apierror.Validation("sucursal_id inválido")
		}
		q.SucursalID = &id
	}
	if !actor.EsAdmin() {
		if actor.SucursalID == nil {
			return nil, apierror.Forbidden("el usuario no tiene sucursal asignada")
		}
		if q.SucursalID != nil && *q.SucursalID != *actor.SucursalID {
			return nil, apierror.Forbidden("la caja pertenece a otra sucursal")
		}
		q.SucursalID = actor.SucursalID
	}
	var err error
	if q.Desde, err = parseFecha(f.Desde, "desde"); err != nil {
		return nil, err
	}
	if q.Hasta, err = parseFecha(f.Hasta, "hasta"); err != nil {
		return nil, err
	}
	if q.Hasta != nil {
		// hasta is inclusive of the whole day.
		h := q.Hasta.AddDate(0, 0, 1)
		q.Hasta = &h
	}

	sesiones, total, err := s.repo.ListSesiones(ctx, q)
	if err != nil {
		return nil, apierror.Internal(err, "error listando sesiones")
	}
	ids := make([]uuid.UUID, len(sesiones))
	for i := range sesiones {
		ids[i] = sesiones[i].ID
	}
	verificadas, err := s.repo.VerificadasEntre(ctx, ids)
	if err != nil {
		return nil, apierror.Internal(err, "error listando sesiones")
	}

	ptrs := make([]*model.SesionCaja, len(sesiones))
	for i := range sesiones {
		ptrs[i] = &sesiones[i]
	}
	ciegas := s.continuidad.anterioresCiegas(ctx, actor, ptrs)

	data := make([]dto.SesionResponse, len(sesiones))
	for i := range sesiones {
		data[i] = ProyectarSesion(&sesiones[i], verificadas[sesiones[i].ID], nil, actor)
		if ciegas[sesiones[i].ID] {
			OcultarDiscrepancia(&data[i])
		}
	}
	return &dto.SesionListResponse{
		Data:       data,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(q.Limit))),
	}, nil
}

// ── ObtenerSesion ─────────────────────────────────────────────────────────────

func (s *cajaService) ObtenerSesion(ctx context.Context, actor Actor, id uuid.UUID) (*dto.SesionResponse, error) {
	sesion, err := s.repo.FindSesionByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "sesión de caja no encontrada")
	}
	if err := actor.exigirSucursal(sesion.SucursalID); err != nil {
		return nil, err
	}
	v, err := s.repo.FindVerificacion(ctx, sesion.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.Internal(err, "error consultando la verificación")
	}

	resp := s.proyectar(ctx, sesion, v != nil, v, actor)
	if !resp.Oculta {
		resp.ContinuidadSiguiente = s.continuidad.conSiguiente(ctx, sesion)
	}
	return &resp, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *cajaService) proyectar(ctx context.Context, sesion *model.SesionCaja, verificada bool, v *model.VerificacionCaja, actor Actor) dto.SesionResponse {
	resp := ProyectarSesion(sesion, verificada, v, actor)
	if s.continuidad.anterioresCiegas(ctx, actor, []*model.SesionCaja{sesion})[sesion.ID] {
		OcultarDiscrepancia(&resp)
	}
	return resp
}

// calcularCierre derives the closing block from a count. Cashier close and
// supervisor verification both go through here.
func (s *cajaService) calcularCierre(ctx context.Context, req dto.CierreRequest) (model.Cierre, error) {
	cat, err := s.dir.Catalogo(ctx)
	if err != nil {
		return model.Cierre{}, err
	}
	billetes, err := leerConteo(req.Billetes, cat, conteo.Billete, "billetes")
	if err != nil {
		return model.Cierre{}, err
	}
	monedas, err := leerConteo(req.Monedas, cat, conteo.Moneda, "monedas")
	if err != nil {
		return model.Cierre{}, err
	}
	cambio, err := leerConteo(req.CambioDejado, cat, conteo.Billete, "cambio_dejado")
	if err != nil {
		return model.Cierre{}, err
	}

	efectivo := totalConteo(billetes, monedas, cat)
	general := efectivo
	metodos := make([]model.TotalMetodoPago, 0, len(req.TotalesMetodoPago))
	for _, m := range req.TotalesMetodoPago {
		if strings.TrimSpace(m.Nombre) == "" {
			return model.Cierre{}, apierror.Validation("totales_metodo_pago: nombre es obligatorio")
		}
		if m.Monto.IsNegative() {
			return model.Cierre{}, apierror.Validation("totales_metodo_pago: monto negativo para %s", m.Nombre)
		}
		monto := m.Monto.Round(2)
		general = general.Add(monto)
		metodos = append(metodos, model.TotalMetodoPago{
			MetodoID:    m.MetodoID,
			Nombre:      strings.TrimSpace(m.Nombre),
			Monto:       monto,
			Operaciones: m.Operaciones,
		})
	}

	cambioTotal := cambio.Total(cat, conteo.Billete)
	retirado := efectivo.Sub(cambioTotal)
	if retirado.IsNegative() {
		return model.Cierre{}, apierror.Validation("el cambio dejado (%s) supera el efectivo contado (%s)", cambioTotal.StringFixed(2), efectivo.StringFixed(2))
	}

	return model.Cierre{
		Billetes:          billetes,
		Monedas:           monedas,
		TotalEfectivo:     efectivo,
		TotalesMetodoPago: metodos,
		TotalGeneral:      general.Round(2),
		CambioDejado:      cambio,
		CambioDejadoTotal: cambioTotal,
		EfectivoRetirado:  retirado,
	}, nil
}

// leerConteo normalizes a count from a request and checks it against the
// active catalog.
func leerConteo(c conteo.Conteo, cat *conteo.Catalogo, t conteo.Tipo, campo string) (conteo.Conteo, error) {
	n, err := conteo.Normalizar(c)
	if err != nil {
		return nil, apierror.Validation("%s: %v", campo, err)
	}
	if err := conteo.Validar(n, cat, t); err != nil {
		return nil, apierror.Validation("%s: %v", campo, err)
	}
	return n, nil
}

func parseFecha(v, campo string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, apierror.Validation("%s: formato esperado AAAA-MM-DD", campo)
	}
	return &t, nil
}

// totalConteo is the bills + coins total of a count.
func totalConteo(b, m conteo.Conteo, cat *conteo.Catalogo) decimal.Decimal {
	return b.Total(cat, conteo.Billete).Add(m.Total(cat, conteo.Moneda))
}
