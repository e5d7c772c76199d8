package handler

import (
	"net/http"

	"arqueo/internal/dto"
	"arqueo/internal/service"

	"github.com/gin-gonic/gin"
)

type RetiroHandler struct{ svc service.RetiroService }

func NewRetiroHandler(svc service.RetiroService) *RetiroHandler { return &RetiroHandler{svc: svc} }

// Crear godoc
// @Summary Registra un retiro de efectivo en una sesion abierta
// @Tags retiros
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Param body body dto.CrearRetiroRequest true "Conteo del retiro"
// @Success 201 {object} dto.RetiroResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/sesiones/{id}/retiros [post]
func (h *RetiroHandler) Crear(c *gin.Context) {
	sesionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.CrearRetiroRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.CrearRetiro(c.Request.Context(), actor, sesionID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Listar godoc
// @Summary Lista los retiros de una sesion
// @Tags retiros
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Success 200 {array} dto.RetiroResponse
// @Router /v1/caja/sesiones/{id}/retiros [get]
func (h *RetiroHandler) Listar(c *gin.Context) {
	sesionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.ListarRetiros(c.Request.Context(), actor, sesionID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Verificar godoc
// @Summary Recuento de un retiro por un supervisor
// @Tags retiros
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de retiro"
// @Param body body dto.VerificarRetiroRequest true "Conteo del supervisor"
// @Success 200 {object} dto.RetiroResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/retiros/{id}/verificacion [post]
func (h *RetiroHandler) Verificar(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.VerificarRetiroRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.VerificarRetiro(c.Request.Context(), actor, id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
