// Package httpx 提供各处理器共用的错误映射。
package httpx

import (
	"errors"
	"net/http"

	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/pkg/log"
	"github.com/ecomxpert/storefront/backend/pkg/utils"
)

// UpstreamError 将上游电商接口的错误写为响应
func UpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *marketplace.APIError
	switch {
	case errors.Is(err, marketplace.ErrUnauthorized):
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, marketplace.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "not found")
	case errors.As(err, &apiErr):
		log.Ctx(r.Context()).Warn().Err(err).Int("upstream_status", apiErr.Status).Msg("marketplace request failed")
		status := http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		utils.RespondError(w, status, msg)
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		utils.RespondError(w, http.StatusBadGateway, "upstream unavailable")
	}
}
