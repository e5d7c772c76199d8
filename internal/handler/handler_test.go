package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arqueo/internal/apierror"
	"arqueo/internal/conciliacion"
	"arqueo/internal/conteo"
	"arqueo/internal/dto"
	"arqueo/internal/middleware"
	"arqueo/internal/model"
	"arqueo/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "handler-secret"

func init() { gin.SetMode(gin.TestMode) }

// ── Fakes ─────────────────────────────────────────────────────────────────────

type fakeCaja struct {
	actor  service.Actor
	id     uuid.UUID
	filter dto.SesionFilter
	err    error
}

func (f *fakeCaja) AbrirSesion(_ context.Context, a service.Actor, req dto.AbrirSesionRequest) (*dto.SesionResponse, error) {
	f.actor = a
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SesionResponse{ID: uuid.NewString(), ReferenciaExterna: req.ReferenciaExterna, Estado: model.EstadoAbierta}, nil
}

func (f *fakeCaja) CerrarSesion(_ context.Context, a service.Actor, id uuid.UUID, _ dto.CerrarSesionRequest) (*dto.SesionResponse, error) {
	f.actor, f.id = a, id
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SesionResponse{ID: id.String(), Estado: model.EstadoPendienteSupervisor}, nil
}

func (f *fakeCaja) VerificarSesion(_ context.Context, a service.Actor, id uuid.UUID, _ dto.VerificarSesionRequest) (*dto.SesionResponse, error) {
	f.actor, f.id = a, id
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SesionResponse{ID: id.String(), Estado: model.EstadoPendienteAgente}, nil
}

func (f *fakeCaja) ListarSesiones(_ context.Context, a service.Actor, fl dto.SesionFilter) (*dto.SesionListResponse, error) {
	f.actor, f.filter = a, fl
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SesionListResponse{Data: []dto.SesionResponse{}, Page: 1, Limit: 50}, nil
}

func (f *fakeCaja) ObtenerSesion(_ context.Context, a service.Actor, id uuid.UUID) (*dto.SesionResponse, error) {
	f.actor, f.id = a, id
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SesionResponse{ID: id.String(), Oculta: true}, nil
}

type fakeRetiros struct {
	req dto.CrearRetiroRequest
	err error
}

func (f *fakeRetiros) CrearRetiro(_ context.Context, _ service.Actor, sesionID uuid.UUID, req dto.CrearRetiroRequest) (*dto.RetiroResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.RetiroResponse{ID: uuid.NewString(), SesionCajaID: sesionID.String(), Secuencia: 1}, nil
}

func (f *fakeRetiros) VerificarRetiro(_ context.Context, _ service.Actor, id uuid.UUID, _ dto.VerificarRetiroRequest) (*dto.RetiroResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.RetiroResponse{ID: id.String()}, nil
}

func (f *fakeRetiros) ListarRetiros(context.Context, service.Actor, uuid.UUID) ([]dto.RetiroResponse, error) {
	return []dto.RetiroResponse{{Secuencia: 1, Oculto: true}}, f.err
}

type fakeConciliacion struct{}

func (fakeConciliacion) ObtenerConciliacion(_ context.Context, _ service.Actor, id uuid.UUID) (*dto.ConciliacionResponse, error) {
	return &dto.ConciliacionResponse{
		SesionCajaID: id.String(),
		Resultado:    conciliacion.Resultado{ErrorExterno: "sistema de ventas no disponible"},
	}, nil
}

type fakeDir struct{ invalidado string }

func (f *fakeDir) ResolverEmpleado(context.Context, string) (*model.Empleado, error) { return nil, nil }
func (f *fakeDir) ResolverPuntoDeVenta(context.Context, uuid.UUID) (*model.PuntoDeVenta, error) {
	return nil, nil
}
func (f *fakeDir) Catalogo(context.Context) (*conteo.Catalogo, error) { return nil, nil }
func (f *fakeDir) InvalidarEmpleado(_ context.Context, codigo string) error {
	f.invalidado = codigo
	return nil
}

// ── Harness ───────────────────────────────────────────────────────────────────

type harness struct {
	r       *gin.Engine
	caja    *fakeCaja
	retiros *fakeRetiros
	dir     *fakeDir
}

func newHarness() *harness {
	h := &harness{caja: &fakeCaja{}, retiros: &fakeRetiros{}, dir: &fakeDir{}}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler())

	cajaH := NewCajaHandler(h.caja)
	retH := NewRetiroHandler(h.retiros)
	concH := NewConciliacionHandler(fakeConciliacion{})
	cacheH := NewCacheHandler(h.dir)

	v1 := r.Group("/v1/caja", middleware.JWTAuth(secret))
	v1.POST("/sesiones", cajaH.Abrir)
	v1.GET("/sesiones", cajaH.Listar)
	v1.GET("/sesiones/:id", cajaH.Obtener)
	v1.POST("/sesiones/:id/cierre", cajaH.Cerrar)
	v1.POST("/sesiones/:id/verificacion", middleware.RequireRole(model.RolSupervisor, model.RolAdministrador), cajaH.Verificar)
	v1.POST("/sesiones/:id/retiros", retH.Crear)
	v1.GET("/sesiones/:id/retiros", retH.Listar)
	v1.POST("/retiros/:id/verificacion", retH.Verificar)
	v1.GET("/sesiones/:id/conciliacion", concH.Obtener)
	v1.DELETE("/cache/empleados/:codigo", middleware.RequireRole(model.RolAdministrador), cacheH.InvalidarEmpleado)
	h.r = r
	return h
}

func token(t *testing.T, rol string, sucursal *uuid.UUID) (string, uuid.UUID) {
	t.Helper()
	uid := uuid.New()
	var s *string
	if sucursal != nil {
		v := sucursal.String()
		s = &v
	}
	tok, err := middleware.SignToken(secret, uid.String(), rol, s, time.Hour)
	require.NoError(t, err)
	return tok, uid
}

func (h *harness) do(method, path, tok string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) apierror.APIError {
	t.Helper()
	var e apierror.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestAbrir_ConstruyeActorDesdeToken(t *testing.T) {
	h := newHarness()
	suc := uuid.New()
	tok, uid := token(t, model.RolCajero, &suc)

	w := h.do(http.MethodPost, "/v1/caja/sesiones", tok, map[string]any{
		"punto_de_venta_id":  uuid.NewString(),
		"codigo_empleado":    "E001",
		"referencia_externa": "Z-1",
		"cambio_inicial":     map[string]any{"billetes": map[string]int{"1000": 5}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, uid, h.caja.actor.UsuarioID)
	assert.Equal(t, model.RolCajero, h.caja.actor.Rol)
	require.NotNil(t, h.caja.actor.SucursalID)
	assert.Equal(t, suc, *h.caja.actor.SucursalID)
}

func TestAbrir_Validacion(t *testing.T) {
	h := newHarness()
	tok, _ := token(t, model.RolCajero, nil)

	w := h.do(http.MethodPost, "/v1/caja/sesiones", tok, "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/v1/caja/sesiones", tok, map[string]any{"punto_de_venta_id": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var ve apierror.ValidationError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ve))
	assert.Contains(t, ve.Fields, "PuntoDeVentaID")
	assert.Contains(t, ve.Fields, "CodigoEmpleado")
}

func TestErroresDeServicioMapeanEstado(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apierror.Conflict("ya existe una sesión abierta en este punto de venta"), http.StatusConflict},
		{apierror.Forbidden("la caja pertenece a otra sucursal"), http.StatusForbidden},
		{apierror.NotFound("sesión no encontrada"), http.StatusNotFound},
		{apierror.Validation("conteo inválido"), http.StatusUnprocessableEntity},
		{apierror.Internal(assert.AnError, "error de almacenamiento"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newHarness()
		h.caja.err = tc.err
		tok, _ := token(t, model.RolSupervisor, nil)
		w := h.do(http.MethodGet, "/v1/caja/sesiones/"+uuid.NewString(), tok, nil)
		assert.Equal(t, tc.status, w.Code)
		e := decodeErr(t, w)
		if tc.status == http.StatusInternalServerError {
			assert.NotContains(t, e.Detail, assert.AnError.Error())
		} else {
			assert.Equal(t, tc.err.(*apierror.Error).Msg, e.Detail)
		}
	}
}

func TestCerrar_IDInvalido(t *testing.T) {
	h := newHarness()
	tok, _ := token(t, model.RolCajero, nil)
	w := h.do(http.MethodPost, "/v1/caja/sesiones/no-uuid/cierre", tok, map[string]any{"codigo_empleado": "E001"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCerrar_PasaIDYResponde(t *testing.T) {
	h := newHarness()
	tok, _ := token(t, model.RolCajero, nil)
	id := uuid.New()
	w := h.do(http.MethodPost, "/v1/caja/sesiones/"+id.String()+"/cierre", tok, map[string]any{
		"codigo_empleado": "E002",
		"billetes":        map[string]int{"10000": 4},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, id, h.caja.id)
}

func TestVerificar_RequiereRol(t *testing.T) {
	h := newHarness()
	id := uuid.NewString()
	caj, _ := token(t, model.RolCajero, nil)
	sup, _ := token(t, model.RolSupervisor, nil)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/v1/caja/sesiones/"+id+"/verificacion", caj, map[string]any{}).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/caja/sesiones/"+id+"/verificacion", sup, map[string]any{}).Code)
}

func TestListar_Filtros(t *testing.T) {
	h := newHarness()
	tok, _ := token(t, model.RolSupervisor, nil)

	w := h.do(http.MethodGet, "/v1/caja/sesiones?estado=pendiente_supervisor&desde=2026-10-01&limit=20", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pendiente_supervisor", h.caja.filter.Estado)
	assert.Equal(t, "2026-10-01", h.caja.filter.Desde)
	assert.Equal(t, 20, h.caja.filter.Limit)

	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodGet, "/v1/caja/sesiones?estado=cerrada", tok, nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodGet, "/v1/caja/sesiones?desde=17/10/2026", tok, nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodGet, "/v1/caja/sesiones?limit=1000", tok, nil).Code)
}

func TestRetiros(t *testing.T) {
	h := newHarness()
	tok, _ := token(t, model.RolCajero, nil)
	sid := uuid.NewString()

	w := h.do(http.MethodPost, "/v1/caja/sesiones/"+sid+"/retiros", tok, map[string]any{
		"codigo_empleado": "E001",
		"billetes":        map[string]int{"10000": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 2, h.retiros.req.Billetes["10000"])

	assert.Equal(t, http.StatusUnprocessableEntity,
		h.do(http.MethodPost, "/v1/caja/sesiones/"+sid+"/retiros", tok, map[string]any{"billetes": map[string]int{"10000": 2}}).Code)

	w = h.do(http.MethodGet, "/v1/caja/sesiones/"+sid+"/retiros", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []dto.RetiroResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Oculto)

	h.retiros.err = apierror.Conflict("el retiro ya fue verificado")
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/v1/caja/retiros/"+uuid.NewString()+"/verificacion", tok, map[string]any{}).Code)
}

func TestConciliacion_ExternoCaidoSigueSiendo200(t *testing.T) {
	h := newHarness()
	tok, _ := token(t, model.RolSupervisor, nil)
	w := h.do(http.MethodGet, "/v1/caja/sesiones/"+uuid.NewString()+"/conciliacion", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sistema de ventas no disponible")
}

func TestInvalidarEmpleado_SoloAdmin(t *testing.T) {
	h := newHarness()
	sup, _ := token(t, model.RolSupervisor, nil)
	adm, _ := token(t, model.RolAdministrador, nil)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, "/v1/caja/cache/empleados/E001", sup, nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/v1/caja/cache/empleados/E001", adm, nil).Code)
	assert.Equal(t, "E001", h.dir.invalidado)
}

func TestSinToken(t *testing.T) {
	h := newHarness()
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/caja/sesiones", "", nil).Code)
}

func TestTokenConSucursalInvalida(t *testing.T) {
	h := newHarness()
	bad := "no-es-uuid"
	tok, err := middleware.SignToken(secret, uuid.NewString(), model.RolCajero, &bad, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/caja/sesiones", tok, nil).Code)
}

func TestHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.GET("/health", Health(nil, rdb, nil, nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body["db"])
	assert.Equal(t, "connected", body["redis"])
	assert.Equal(t, "disabled", body["ledger"])
	assert.NotContains(t, body, "ledger_dlq")
}

type colaMuertaFija int64

func (n colaMuertaFija) Len(context.Context) (int64, error) { return int64(n), nil }

func TestHealth_ReportaColaMuerta(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.GET("/health", Health(nil, rdb, nil, colaMuertaFija(3)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 3, body["ledger_dlq"])
}

func TestActorFrom_SinClaimsResponde401(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	var ok bool
	require.NotPanics(t, func() { _, ok = actorFrom(c) })
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, c.IsAborted())
}
