package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/roomviz-backend/internal/http/response"
	"github.com/yungbote/roomviz-backend/internal/services"
)

type CatalogHandler struct {
	catalog services.Catalog
}

func NewCatalogHandler(catalog services.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GET /api/catalog?kind=floor|wall
func (h *CatalogHandler) ListMaterials(c *gin.Context) {
	kind := strings.ToLower(strings.TrimSpace(c.Query("kind")))
	switch kind {
	case "", "wall", "floor":
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_kind", errUnknownKind(kind))
		return
	}
	response.RespondOK(c, gin.H{
		"currency":           h.catalog.Currency(),
		"paint_price_per_m2": h.catalog.PaintPricePerM2(),
		"materials":          h.catalog.List(kind),
	})
}
