package handler

import (
	"net/http"
	"strings"

	"arqueo/internal/apierror"
	"arqueo/internal/service"

	"github.com/gin-gonic/gin"
)

type CacheHandler struct{ dir service.Directorio }

func NewCacheHandler(dir service.Directorio) *CacheHandler { return &CacheHandler{dir: dir} }

// InvalidarEmpleado godoc
// @Summary Descarta el empleado cacheado tras una baja o cambio en el directorio
// @Tags admin
// @Security BearerAuth
// @Param codigo path string true "Codigo de empleado"
// @Success 204
// @Router /v1/caja/cache/empleados/{codigo} [delete]
func (h *CacheHandler) InvalidarEmpleado(c *gin.Context) {
	codigo := strings.TrimSpace(c.Param("codigo"))
	if codigo == "" {
		c.JSON(http.StatusBadRequest, apierror.New("codigo requerido"))
		return
	}
	if err := h.dir.InvalidarEmpleado(c.Request.Context(), codigo); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
