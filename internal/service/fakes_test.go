package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"arqueo/internal/conciliacion"
	"arqueo/internal/conteo"
	"arqueo/internal/dto"
	"arqueo/internal/infra"
	"arqueo/internal/model"
	"arqueo/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ── In-memory store ──────────────────────────────────────────────────────────
// memStore implements the caja, retiro and referencia repositories and
// enforces the same uniqueness rules as the migration: one abierta session per
// register, one verification per session / withdrawal, unique
// (sesion_caja_id, secuencia). It stores values, never the caller's pointers.

type memStore struct {
	mu sync.Mutex

	sesiones     map[uuid.UUID]model.SesionCaja
	orden        []uuid.UUID
	verifs       map[uuid.UUID]model.VerificacionCaja
	retiros      map[uuid.UUID]model.Retiro
	verifRetiros map[uuid.UUID]model.VerificacionRetiro

	empleados map[string]model.Empleado
	pdvs      map[uuid.UUID]model.PuntoDeVenta
	denoms    []model.Denominacion

	errUltima    error
	errPorIDs    error
	empleadoHits int
}

func newMemStore() *memStore {
	return &memStore{
		sesiones:     map[uuid.UUID]model.SesionCaja{},
		verifs:       map[uuid.UUID]model.VerificacionCaja{},
		retiros:      map[uuid.UUID]model.Retiro{},
		verifRetiros: map[uuid.UUID]model.VerificacionRetiro{},
		empleados:    map[string]model.Empleado{},
		pdvs:         map[uuid.UUID]model.PuntoDeVenta{},
	}
}

func (m *memStore) CreateSesion(_ context.Context, s *model.SesionCaja) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.sesiones {
		if other.PuntoDeVentaID == s.PuntoDeVentaID && other.Estado == model.EstadoAbierta {
			return repository.ErrDuplicate
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	m.sesiones[s.ID] = *s
	m.orden = append(m.orden, s.ID)
	return nil
}

func (m *memStore) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sesiones[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) FindUltimaSesionNoAbierta(_ context.Context, pdvID uuid.UUID) (*model.SesionCaja, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errUltima != nil {
		return nil, m.errUltima
	}
	for i := len(m.orden) - 1; i >= 0; i-- {
		s := m.sesiones[m.orden[i]]
		if s.PuntoDeVentaID == pdvID && s.Estado != model.EstadoAbierta {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindSesionSiguiente(_ context.Context, cur *model.SesionCaja) (*model.SesionCaja, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := false
	for _, id := range m.orden {
		if id == cur.ID {
			seen = true
			continue
		}
		if s := m.sesiones[id]; seen && s.PuntoDeVentaID == cur.PuntoDeVentaID {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindSesionesPorIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.SesionCaja, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errPorIDs != nil {
		return nil, m.errPorIDs
	}
	out := map[uuid.UUID]*model.SesionCaja{}
	for _, id := range ids {
		if s, ok := m.sesiones[id]; ok {
			out[id] = &s
		}
	}
	return out, nil
}

func (m *memStore) CerrarSesion(_ context.Context, s *model.SesionCaja) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sesiones[s.ID]
	if !ok || cur.Estado != model.EstadoAbierta {
		return repository.ErrEstadoObsoleto
	}
	m.sesiones[s.ID] = *s
	return nil
}

func (m *memStore) VerificarSesion(_ context.Context, v *model.VerificacionCaja) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.verifs[v.SesionCajaID]; dup {
		return repository.ErrDuplicate
	}
	s, ok := m.sesiones[v.SesionCajaID]
	if !ok || s.Estado != model.EstadoPendienteSupervisor {
		return repository.ErrEstadoObsoleto
	}
	s.Estado = model.EstadoPendienteAgente
	m.sesiones[s.ID] = s
	m.verifs[v.SesionCajaID] = *v
	return nil
}

func (m *memStore) FindVerificacion(_ context.Context, sesionID uuid.UUID) (*model.VerificacionCaja, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.verifs[sesionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (m *memStore) ListSesiones(_ context.Context, q repository.SesionQuery) ([]model.SesionCaja, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SesionCaja
	for _, s := range m.sesiones {
		if q.PuntoDeVentaID != nil && s.PuntoDeVentaID != *q.PuntoDeVentaID {
			continue
		}
		if q.SucursalID != nil && s.SucursalID != *q.SucursalID {
			continue
		}
		if q.Estado != "" && s.Estado != q.Estado {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	total := int64(len(out))
	from := (q.Page - 1) * q.Limit
	if from > len(out) {
		from = len(out)
	}
	to := from + q.Limit
	if to > len(out) {
		to = len(out)
	}
	return out[from:to], total, nil
}

func (m *memStore) VerificadasEntre(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		if _, ok := m.verifs[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memStore) MaxSecuencia(_ context.Context, sesionID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, r := range m.retiros {
		if r.SesionCajaID == sesionID && r.Secuencia > max {
			max = r.Secuencia
		}
	}
	return max, nil
}

func (m *memStore) CreateRetiro(_ context.Context, r *model.Retiro) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sesiones[r.SesionCajaID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.Estado != model.EstadoAbierta {
		return repository.ErrEstadoObsoleto
	}
	for _, other := range m.retiros {
		if other.SesionCajaID == r.SesionCajaID && other.Secuencia == r.Secuencia {
			return repository.ErrDuplicate
		}
	}
	stored := *r
	stored.Verificacion = nil
	m.retiros[r.ID] = stored
	return nil
}

func (m *memStore) withVerificacion(r model.Retiro) model.Retiro {
	if v, ok := m.verifRetiros[r.ID]; ok {
		r.Verificacion = &v
	}
	return r
}

func (m *memStore) FindRetiroByID(_ context.Context, id uuid.UUID) (*model.Retiro, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.retiros[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r = m.withVerificacion(r)
	return &r, nil
}

func (m *memStore) ListRetiros(_ context.Context, sesionID uuid.UUID) ([]model.Retiro, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Retiro
	for _, r := range m.retiros {
		if r.SesionCajaID == sesionID {
			out = append(out, m.withVerificacion(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Secuencia < out[j].Secuencia })
	return out, nil
}

func (m *memStore) VerificarRetiro(_ context.Context, v *model.VerificacionRetiro) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.verifRetiros[v.RetiroID]; dup {
		return repository.ErrDuplicate
	}
	m.verifRetiros[v.RetiroID] = *v
	return nil
}

func (m *memStore) FindEmpleadoActivoByCodigo(_ context.Context, codigo string) (*model.Empleado, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.empleadoHits++
	e, ok := m.empleados[codigo]
	if !ok || !e.Activo {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (m *memStore) FindPuntoDeVentaByID(_ context.Context, id uuid.UUID) (*model.PuntoDeVenta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pdvs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) ListDenominaciones(_ context.Context) ([]model.Denominacion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Denominacion(nil), m.denoms...), nil
}

func (m *memStore) UpsertReferencia(_ context.Context, denoms []model.Denominacion, pdvs []model.PuntoDeVenta, emps []model.Empleado) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denoms = append(m.denoms, denoms...)
	for _, p := range pdvs {
		m.pdvs[p.ID] = p
	}
	for _, e := range emps {
		m.empleados[e.Codigo] = e
	}
	return nil
}

// ── Fake ledger ──────────────────────────────────────────────────────────────

type fakeLedger struct {
	mu      sync.Mutex
	cierres map[string]*conciliacion.Externo
	err     error
	calls   int
}

func (f *fakeLedger) Obtener(_ context.Context, referencia string) (*conciliacion.Externo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ext, ok := f.cierres[referencia]
	if !ok {
		return nil, infra.ErrLedgerNotFound
	}
	cp := *ext
	return &cp, nil
}

// ── Fixture ──────────────────────────────────────────────────────────────────

// ── Fake close notification ──────────────────────────────────────────────────

type fakeAviso struct {
	mu          sync.Mutex
	err         error
	referencias []string
}

func (f *fakeAviso) SesionCerrada(_ context.Context, _ uuid.UUID, referencia string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.referencias = append(f.referencias, referencia)
	return f.err
}

type fixture struct {
	store  *memStore
	ledger *fakeLedger
	aviso  *fakeAviso
	caja   CajaService
	retiro RetiroService
	conc   ConciliacionService

	pdv      model.PuntoDeVenta
	otroPDV  model.PuntoDeVenta
	sucursal uuid.UUID

	cajero      Actor
	otroCajero  Actor
	supervisor  Actor
	supervisor2 Actor
	supForaneo  Actor
	admin       Actor
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	sucursal := uuid.New()
	otraSucursal := uuid.New()

	pdv := model.PuntoDeVenta{ID: uuid.New(), SucursalID: sucursal, Nombre: "Caja 1"}
	otroPDV := model.PuntoDeVenta{ID: uuid.New(), SucursalID: sucursal, Nombre: "Caja 2"}

	var denoms []model.Denominacion
	for i, v := range []string{"10000", "2000", "1000", "500", "200", "100"} {
		denoms = append(denoms, model.Denominacion{ID: uuid.New(), Valor: dec(v), Tipo: string(conteo.Billete), Activa: true, Orden: i})
	}
	denoms = append(denoms, model.Denominacion{ID: uuid.New(), Valor: dec("5"), Tipo: string(conteo.Billete), Activa: false, Orden: 99})
	for i, v := range []string{"10", "5", "2", "1"} {
		denoms = append(denoms, model.Denominacion{ID: uuid.New(), Valor: dec(v), Tipo: string(conteo.Moneda), Activa: true, Orden: i})
	}

	emps := []model.Empleado{
		{ID: uuid.New(), Codigo: "E001", Nombre: "Ana", GrupoSucursal: "norte", Activo: true},
		{ID: uuid.New(), Codigo: "E002", Nombre: "Beto", GrupoSucursal: "norte", Activo: true},
		{ID: uuid.New(), Codigo: "E099", Nombre: "Baja", GrupoSucursal: "norte", Activo: false},
	}
	require.NoError(t, store.UpsertReferencia(context.Background(), denoms, []model.PuntoDeVenta{pdv, otroPDV}, emps))

	ledger := &fakeLedger{cierres: map[string]*conciliacion.Externo{}}
	dir := NewDirectorio(store, nil)
	aviso := &fakeAviso{}

	return &fixture{
		store:       store,
		ledger:      ledger,
		aviso:       aviso,
		caja:        NewCajaService(store, dir, aviso),
		retiro:      NewRetiroService(store, store, dir, 50),
		conc:        NewConciliacionService(store, store, ledger, nil),
		pdv:         pdv,
		otroPDV:     otroPDV,
		sucursal:    sucursal,
		cajero:      Actor{UsuarioID: uuid.New(), Rol: model.RolCajero, SucursalID: &sucursal},
		otroCajero:  Actor{UsuarioID: uuid.New(), Rol: model.RolCajero, SucursalID: &sucursal},
		supervisor:  Actor{UsuarioID: uuid.New(), Rol: model.RolSupervisor, SucursalID: &sucursal},
		supervisor2: Actor{UsuarioID: uuid.New(), Rol: model.RolSupervisor, SucursalID: &sucursal},
		supForaneo:  Actor{UsuarioID: uuid.New(), Rol: model.RolSupervisor, SucursalID: &otraSucursal},
		admin:       Actor{UsuarioID: uuid.New(), Rol: model.RolAdministrador},
	}
}

func (f *fixture) abrir(t *testing.T, actor Actor, pdv model.PuntoDeVenta, billetes conteo.Conteo) *dto.SesionResponse {
	t.Helper()
	resp, err := f.caja.AbrirSesion(context.Background(), actor, dto.AbrirSesionRequest{
		PuntoDeVentaID:    pdv.ID.String(),
		CodigoEmpleado:    "E001",
		ReferenciaExterna: "Z-" + uuid.NewString()[:8],
		CambioInicial:     dto.ConteoRequest{Billetes: billetes},
	})
	require.NoError(t, err)
	return resp
}

// cierreEscenario is the closing count from the reference scenario:
// bills 50000, coins 250, PAYWAY 12000, change left 5000.
func cierreEscenario() dto.CierreRequest {
	return dto.CierreRequest{
		Billetes: conteo.Conteo{"10000": 4, "2000": 4, "1000": 2},
		Monedas:  conteo.Conteo{"10": 25},
		TotalesMetodoPago: []dto.TotalMetodoPagoRequest{
			{MetodoID: "payway", Nombre: "PAYWAY", Monto: dec("12000"), Operaciones: 7},
		},
		CambioDejado: conteo.Conteo{"1000": 5},
	}
}

func (f *fixture) cerrar(t *testing.T, actor Actor, id string, req dto.CierreRequest) *dto.SesionResponse {
	t.Helper()
	resp, err := f.caja.CerrarSesion(context.Background(), actor, uuid.MustParse(id), dto.CerrarSesionRequest{
		CierreRequest:  req,
		CodigoEmpleado: "E002",
	})
	require.NoError(t, err)
	return resp
}
