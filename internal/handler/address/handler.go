package address

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecomxpert/storefront/backend/internal/handler/httpx"
	"github.com/ecomxpert/storefront/backend/internal/model/address"
	addressService "github.com/ecomxpert/storefront/backend/internal/service/address"
	"github.com/ecomxpert/storefront/backend/pkg/utils"
)

// Book 上游地址簿接口
type Book interface {
	Addresses(ctx context.Context) ([]address.Address, error)
	AddAddress(ctx context.Context, a address.Address) (address.Address, error)
	UpdateAddress(ctx context.Context, id string, a address.Address) (address.Address, error)
	DeleteAddress(ctx context.Context, id string) error
}

// Handler 收货地址的HTTP处理器
type Handler struct {
	book Book
}

// New 创建地址处理器
func New(book Book) *Handler {
	return &Handler{book: book}
}

// RegisterRoutes 注册地址相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/addresses", func(r chi.Router) {
		r.Post("/validate", h.handleValidate)
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func decodeDraft(w http.ResponseWriter, r *http.Request) (address.Address, bool) {
	var draft addressService.Draft
	if err := utils.DecodeJSON(w, r, 0, &draft); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return address.Address{}, false
	}
	a, err := draft.ToAddress()
	if err != nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, err.Error())
		return address.Address{}, false
	}
	return a, true
}

// handleValidate 校验草稿并返回将提交给上游的地址
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var draft addressService.Draft
	if err := utils.DecodeJSON(w, r, 0, &draft); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a, err := draft.ToAddress()
	if err != nil {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"valid": true, "address": a})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.book.Addresses(r.Context())
	if err != nil {
		httpx.UpstreamError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	a, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	saved, err := h.book.AddAddress(r.Context(), a)
	if err != nil {
		httpx.UpstreamError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, saved)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	a, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	a.ID = id
	saved, err := h.book.UpdateAddress(r.Context(), id, a)
	if err != nil {
		httpx.UpstreamError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.book.DeleteAddress(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.UpstreamError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
