package seller

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecomxpert/storefront/backend/internal/handler/httpx"
	"github.com/ecomxpert/storefront/backend/internal/service/sales"
	"github.com/ecomxpert/storefront/backend/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler 卖家工具的HTTP处理器
type Handler struct {
	exporter *sales.Exporter
}

// New 创建卖家处理器
func New(exporter *sales.Exporter) *Handler {
	return &Handler{exporter: exporter}
}

// RegisterRoutes 注册卖家路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/seller/sales.xlsx", h.handleSalesExport)
}

// handleSalesExport 导出店铺订单为 Excel 文件
func (h *Handler) handleSalesExport(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("store_id")

	// 先写入缓冲区，失败时仍可返回 JSON 错误
	var buf bytes.Buffer
	sum, err := h.exporter.Export(r.Context(), storeID, &buf)
	if err != nil {
		if errors.Is(err, sales.ErrStoreRequired) {
			utils.RespondError(w, http.StatusBadRequest, "store_id is required")
			return
		}
		httpx.UpstreamError(w, r, err)
		return
	}

	filename := fmt.Sprintf("sales_%s_%s.xlsx", storeID, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Order-Count", strconv.Itoa(sum.Orders))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
