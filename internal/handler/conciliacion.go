package handler

import (
	"net/http"

	"arqueo/internal/service"

	"github.com/gin-gonic/gin"
)

type ConciliacionHandler struct{ svc service.ConciliacionService }

func NewConciliacionHandler(svc service.ConciliacionService) *ConciliacionHandler {
	return &ConciliacionHandler{svc: svc}
}

// Obtener godoc
// @Summary Conciliacion cajero / supervisor / sistema de ventas
// @Description Devuelve 200 aun si el sistema de ventas no responde; en ese caso externo_disponible es false.
// @Tags conciliacion
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Success 200 {object} dto.ConciliacionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/sesiones/{id}/conciliacion [get]
func (h *ConciliacionHandler) Obtener(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerConciliacion(c.Request.Context(), actor, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
