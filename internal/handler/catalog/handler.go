package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ecomxpert/storefront/backend/internal/handler/httpx"
	"github.com/ecomxpert/storefront/backend/internal/middleware"
	"github.com/ecomxpert/storefront/backend/internal/model/catalog"
	"github.com/ecomxpert/storefront/backend/internal/model/order"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/pkg/log"
	"github.com/ecomxpert/storefront/backend/pkg/utils"
)

// Marketplace 商品目录、购物车与订单的上游接口
type Marketplace interface {
	Categories(ctx context.Context) ([]catalog.Category, error)
	Products(ctx context.Context, filter url.Values) ([]catalog.Product, error)
	Product(ctx context.Context, id string) (catalog.Product, error)
	Stores(ctx context.Context) ([]catalog.Store, error)
	Store(ctx context.Context, id string) (catalog.Store, error)
	StoreAddOns(ctx context.Context, storeID string) (catalog.Menu, error)
	PublicSettings(ctx context.Context) (catalog.Settings, error)
	Cart(ctx context.Context) ([]catalog.CartItem, error)
	Orders(ctx context.Context, filter marketplace.OrderFilter) ([]order.Order, error)
	Order(ctx context.Context, id string) (order.Order, error)
	PlaceOrder(ctx context.Context, checkout order.Checkout) ([]string, error)
	CancelOrder(ctx context.Context, id string) error
}

// Handler 商品目录与订单的HTTP处理器
type Handler struct {
	api Marketplace
}

// New 创建目录处理器
func New(api Marketplace) *Handler {
	return &Handler{api: api}
}

// RegisterRoutes 注册目录与订单路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.handleCategories)
	r.Get("/products", h.handleProducts)
	r.Get("/products/{id}", h.handleProduct)
	r.Get("/stores", h.handleStores)
	r.Get("/stores/{id}", h.handleStore)
	r.Get("/stores/{id}/addons", h.handleStoreAddOns)
	r.Get("/settings/public", h.handleSettings)
	r.Get("/cart", h.handleCart)

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.handleOrders)
		r.Post("/", h.handlePlaceOrder)
		r.Get("/{id}", h.handleOrder)
		r.Put("/{id}/cancel", h.handleCancel)
	})
}

func write(w http.ResponseWriter, r *http.Request, payload interface{}, err error) {
	if err != nil {
		httpx.UpstreamError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.Categories(r.Context())
	write(w, r, list, err)
}

// handleProducts 透传 store_id、store_type 等筛选参数
func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.Products(r.Context(), r.URL.Query())
	write(w, r, list, err)
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.api.Product(r.Context(), chi.URLParam(r, "id"))
	write(w, r, p, err)
}

func (h *Handler) handleStores(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.Stores(r.Context())
	write(w, r, list, err)
}

func (h *Handler) handleStore(w http.ResponseWriter, r *http.Request) {
	s, err := h.api.Store(r.Context(), chi.URLParam(r, "id"))
	write(w, r, s, err)
}

func (h *Handler) handleStoreAddOns(w http.ResponseWriter, r *http.Request) {
	menu, err := h.api.StoreAddOns(r.Context(), chi.URLParam(r, "id"))
	write(w, r, menu, err)
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.api.PublicSettings(r.Context())
	write(w, r, settings, err)
}

func (h *Handler) handleCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.api.Cart(r.Context())
	write(w, r, items, err)
}

// handleOrders 按 store_id 查询店铺订单，否则查询当前浏览者的订单
func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	filter := marketplace.OrderFilter{
		StoreID: strings.TrimSpace(r.URL.Query().Get("store_id")),
		UserID:  strings.TrimSpace(r.URL.Query().Get("userId")),
	}
	if filter.StoreID == "" && filter.UserID == "" {
		filter.UserID = middleware.ViewerID(r.Context())
	}
	if filter.StoreID == "" && filter.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId or store_id is required")
		return
	}
	list, err := h.api.Orders(r.Context(), filter)
	write(w, r, list, err)
}

func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.api.Order(r.Context(), chi.URLParam(r, "id"))
	write(w, r, o, err)
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var checkout order.Checkout
	if err := utils.DecodeJSON(w, r, 0, &checkout); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if checkout.UserID == "" {
		checkout.UserID = middleware.ViewerID(r.Context())
	}
	if checkout.UserID == "" || len(checkout.CartItems) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "userId and cartItems are required")
		return
	}

	ids, err := h.api.PlaceOrder(r.Context(), checkout)
	if err != nil {
		httpx.UpstreamError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().Strs("order_ids", ids).Str("total", checkout.Total.Decimal()).Msg("order placed")
	utils.RespondJSON(w, http.StatusCreated, map[string]any{"orderIds": ids})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.api.CancelOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.UpstreamError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": order.StatusCancelled})
}
