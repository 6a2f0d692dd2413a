package geo

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	geoService "github.com/ecomxpert/storefront/backend/internal/service/geo"
	"github.com/ecomxpert/storefront/backend/pkg/log"
	"github.com/ecomxpert/storefront/backend/pkg/utils"
)

// Handler 行政区划与地理编码的HTTP处理器
type Handler struct {
	geoSvc *geoService.Service
}

// New 创建地理处理器
func New(geoSvc *geoService.Service) *Handler {
	return &Handler{geoSvc: geoSvc}
}

// RegisterRoutes 注册地理相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/geo", func(r chi.Router) {
		r.Get("/regions", h.handleRegions)
		r.Get("/regions/{code}/provinces", h.handleProvinces)
		r.Get("/provinces/{code}/cities", h.handleCities)
		r.Get("/cities/{code}/barangays", h.handleBarangays)
		r.Get("/search", h.handleSearch)
		r.Get("/reverse", h.handleReverse)
	})
}

func (h *Handler) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.geoSvc.Regions(r.Context())
	respond(w, r, regions, err)
}

func (h *Handler) handleProvinces(w http.ResponseWriter, r *http.Request) {
	provinces, err := h.geoSvc.Provinces(r.Context(), chi.URLParam(r, "code"))
	respond(w, r, provinces, err)
}

func (h *Handler) handleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.geoSvc.CitiesMunicipalities(r.Context(), chi.URLParam(r, "code"))
	respond(w, r, cities, err)
}

func (h *Handler) handleBarangays(w http.ResponseWriter, r *http.Request) {
	barangays, err := h.geoSvc.Barangays(r.Context(), chi.URLParam(r, "code"))
	respond(w, r, barangays, err)
}

// handleSearch 按关键字搜索地点，默认返回 5 条
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 50 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}
	places, err := h.geoSvc.Search(r.Context(), r.URL.Query().Get("q"), limit)
	respond(w, r, places, err)
}

// handleReverse 坐标反查地点，并附带推导出的省与城市
func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		utils.RespondError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}

	place, err := h.geoSvc.Reverse(r.Context(), lat, lon)
	if err != nil {
		respond(w, r, nil, err)
		return
	}
	province, city := place.Locality()
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"place":    place,
		"province": province,
		"city":     city,
	})
}

func respond(w http.ResponseWriter, r *http.Request, payload interface{}, err error) {
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, payload)
	case errors.Is(err, geoService.ErrQueryRequired), errors.Is(err, geoService.ErrCodeRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, geoService.ErrNoPlace):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		log.Ctx(r.Context()).Warn().Err(err).Msg("geo lookup failed")
		utils.RespondError(w, http.StatusBadGateway, "geo lookup failed")
	}
}
