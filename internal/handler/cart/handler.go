package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecomxpert/storefront/backend/internal/handler/httpx"
	"github.com/ecomxpert/storefront/backend/internal/middleware"
	"github.com/ecomxpert/storefront/backend/internal/model/money"
	cartService "github.com/ecomxpert/storefront/backend/internal/service/cart"
	"github.com/ecomxpert/storefront/backend/pkg/utils"
)

// Handler 购物车加料编辑的HTTP处理器
type Handler struct {
	editor *cartService.Editor
}

// New 创建购物车处理器
func New(editor *cartService.Editor) *Handler {
	return &Handler{editor: editor}
}

// RegisterRoutes 注册购物车相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/cart/quote", h.handleQuote)

	r.Route("/cart/items/{itemID}/addons", func(r chi.Router) {
		r.Use(middleware.RequireViewer)
		r.Post("/", h.handleBegin)
		r.Get("/", h.handleCurrent)
		r.Delete("/", h.handleDiscard)
		r.Post("/select", h.handleSelect)
		r.Post("/deselect", h.handleDeselect)
		r.Put("/quantity", h.handleQuantity)
		r.Post("/commit", h.handleCommit)
	})
}

type quoteLine struct {
	CategoryID string      `json:"categoryId"`
	AddOnID    string      `json:"addonId"`
	VariantID  string      `json:"variantId"`
	Name       string      `json:"name"`
	Variant    string      `json:"variant"`
	UnitPrice  money.Money `json:"unitPrice"`
	Quantity   int         `json:"quantity"`
}

// handleQuote 无状态计价：基础价 × 数量 + Σ(加料单价 × 加料数量)
func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		BasePrice money.Money `json:"basePrice"`
		Quantity  int         `json:"quantity"`
		Stock     int         `json:"stock"`
		AddOns    []quoteLine `json:"addOns"`
	}
	if err := utils.DecodeJSON(w, r, 0, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]cartService.Line, 0, len(payload.AddOns))
	for _, l := range payload.AddOns {
		if l.Quantity <= 0 {
			continue
		}
		if l.CategoryID == "" || l.AddOnID == "" {
			utils.RespondError(w, http.StatusBadRequest, "categoryId and addonId are required")
			return
		}
		lines = append(lines, cartService.Line{
			Key:        cartService.Key(l.CategoryID, l.AddOnID, l.VariantID),
			CategoryID: l.CategoryID,
			AddOnID:    l.AddOnID,
			VariantID:  l.VariantID,
			Name:       l.Name,
			Variant:    l.Variant,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
		})
	}

	quantity := cartService.ClampQuantity(payload.Quantity, payload.Stock)
	utils.RespondJSON(w, http.StatusOK, cartService.Calculate(payload.BasePrice, quantity, lines))
}

func ids(r *http.Request) (string, string) {
	return middleware.ViewerID(r.Context()), chi.URLParam(r, "itemID")
}

// handleBegin 打开加料编辑，载入购物车项与店铺加料菜单
func (h *Handler) handleBegin(w http.ResponseWriter, r *http.Request) {
	viewerID, itemID := ids(r)
	q, err := h.editor.Begin(r.Context(), viewerID, itemID)
	h.respond(w, r, q, err)
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	viewerID, itemID := ids(r)
	q, err := h.editor.Quote(r.Context(), viewerID, itemID)
	h.respond(w, r, q, err)
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	viewerID, itemID := ids(r)
	h.editor.Discard(r.Context(), viewerID, itemID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CategoryID string `json:"categoryId"`
		AddOnID    string `json:"addonId"`
		VariantID  string `json:"variantId"`
	}
	if err := utils.DecodeJSON(w, r, 0, &payload); err != nil || payload.CategoryID == "" || payload.AddOnID == "" {
		utils.RespondError(w, http.StatusBadRequest, "categoryId and addonId are required")
		return
	}
	viewerID, itemID := ids(r)
	q, err := h.editor.Select(r.Context(), viewerID, itemID, payload.CategoryID, payload.AddOnID, payload.VariantID)
	h.respond(w, r, q, err)
}

func (h *Handler) handleDeselect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key string `json:"key"`
	}
	if err := utils.DecodeJSON(w, r, 0, &payload); err != nil || payload.Key == "" {
		utils.RespondError(w, http.StatusBadRequest, "key is required")
		return
	}
	viewerID, itemID := ids(r)
	q, err := h.editor.Deselect(r.Context(), viewerID, itemID, payload.Key)
	h.respond(w, r, q, err)
}

func (h *Handler) handleQuantity(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Quantity int `json:"quantity"`
	}
	if err := utils.DecodeJSON(w, r, 0, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	viewerID, itemID := ids(r)
	q, err := h.editor.SetQuantity(r.Context(), viewerID, itemID, payload.Quantity)
	h.respond(w, r, q, err)
}

// handleCommit 同步写回购物车项；失败时草稿保留
func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	viewerID, itemID := ids(r)
	q, err := h.editor.Commit(r.Context(), viewerID, itemID)
	h.respond(w, r, q, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, q cartService.Quote, err error) {
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, q)
	case errors.Is(err, cartService.ErrItemNotFound), errors.Is(err, cartService.ErrNoEdit):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cartService.ErrUnknownAddOn), errors.Is(err, cartService.ErrLineNotPresent):
		utils.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		httpx.UpstreamError(w, r, err)
	}
}
