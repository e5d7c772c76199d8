package handler

import (
	"net/http"

	"arqueo/internal/dto"
	"arqueo/internal/service"

	"github.com/gin-gonic/gin"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// Abrir godoc
// @Summary Abre una sesion de caja en un punto de venta
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirSesionRequest true "Datos de apertura"
// @Success 201 {object} dto.SesionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/sesiones [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirSesionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.AbrirSesion(c.Request.Context(), actor, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cerrar godoc
// @Summary Cierre ciego de la sesion por el cajero
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Param body body dto.CerrarSesionRequest true "Conteo del cajero"
// @Success 200 {object} dto.SesionResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/sesiones/{id}/cierre [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.CerrarSesionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.CerrarSesion(c.Request.Context(), actor, id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Verificar godoc
// @Summary Recuento independiente del supervisor
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Param body body dto.VerificarSesionRequest true "Conteo del supervisor"
// @Success 200 {object} dto.SesionResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/sesiones/{id}/verificacion [post]
func (h *CajaHandler) Verificar(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.VerificarSesionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.VerificarSesion(c.Request.Context(), actor, id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listar godoc
// @Summary Lista sesiones de caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param punto_de_venta_id query string false "Punto de venta"
// @Param sucursal_id query string false "Sucursal (solo administradores)"
// @Param estado query string false "abierta | pendiente_supervisor | pendiente_agente"
// @Param desde query string false "YYYY-MM-DD"
// @Param hasta query string false "YYYY-MM-DD, inclusive"
// @Param page query int false "Pagina"
// @Param limit query int false "Tamano de pagina"
// @Success 200 {object} dto.SesionListResponse
// @Router /v1/caja/sesiones [get]
func (h *CajaHandler) Listar(c *gin.Context) {
	var f dto.SesionFilter
	if !bindQueryAndValidate(c, &f) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.ListarSesiones(c.Request.Context(), actor, f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Obtener godoc
// @Summary Obtiene una sesion de caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Success 200 {object} dto.SesionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/sesiones/{id} [get]
func (h *CajaHandler) Obtener(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerSesion(c.Request.Context(), actor, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
