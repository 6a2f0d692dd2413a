package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecomxpert/storefront/backend/internal/config"
	"github.com/ecomxpert/storefront/backend/internal/handler/address"
	"github.com/ecomxpert/storefront/backend/internal/handler/cart"
	"github.com/ecomxpert/storefront/backend/internal/handler/catalog"
	"github.com/ecomxpert/storefront/backend/internal/handler/chat"
	"github.com/ecomxpert/storefront/backend/internal/handler/geo"
	"github.com/ecomxpert/storefront/backend/internal/handler/seller"
	middlewarePkg "github.com/ecomxpert/storefront/backend/internal/middleware"
	cartService "github.com/ecomxpert/storefront/backend/internal/service/cart"
	chatService "github.com/ecomxpert/storefront/backend/internal/service/chat"
	geoService "github.com/ecomxpert/storefront/backend/internal/service/geo"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/internal/service/sales"
	"github.com/ecomxpert/storefront/backend/pkg/log"
	"github.com/ecomxpert/storefront/backend/pkg/utils"
)

// Deps 汇总路由需要的服务
type Deps struct {
	Config      *config.Config
	Marketplace *marketplace.Client
	Chat        *chatService.Service
	Cart        *cartService.Editor
	Geo         *geoService.Service
	Sales       *sales.Exporter
	Limiter     *middlewarePkg.RateLimiter
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.HTTPMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(d.Config.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		if d.Limiter != nil {
			api.Use(d.Limiter.Middleware)
		}
		api.Use(middlewarePkg.Viewer)

		// Register chat routes
		chat.New(d.Chat, d.Config.Chat.MaxAttachmentBytes).RegisterRoutes(api)

		// Register cart add-on editor routes
		cart.New(d.Cart).RegisterRoutes(api)

		// Register geo and address routes
		geo.New(d.Geo).RegisterRoutes(api)
		address.New(d.Marketplace).RegisterRoutes(api)

		// Register catalog and order routes
		catalog.New(d.Marketplace).RegisterRoutes(api)

		if d.Sales != nil {
			seller.New(d.Sales).RegisterRoutes(api)
		}
	})

	return r
}
