package chat

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ecomxpert/storefront/backend/internal/handler/httpx"
	"github.com/ecomxpert/storefront/backend/internal/middleware"
	"github.com/ecomxpert/storefront/backend/internal/model/chat"
	chatService "github.com/ecomxpert/storefront/backend/internal/service/chat"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/pkg/utils"
)

// Handler 聊天会话的HTTP处理器
type Handler struct {
	chatSvc        *chatService.Service
	maxUploadBytes int64
}

// New 创建聊天处理器；maxUploadBytes 限制单次发送的请求体大小
func New(chatSvc *chatService.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	return &Handler{chatSvc: chatSvc, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		// 附件预览由 <img>/<video> 直接加载，不带浏览者头
		r.Get("/previews/{previewID}", h.handlePreview)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireViewer)
			r.Post("/sessions", h.handleOpen)
			r.Get("/sessions", h.handleList)
			r.Get("/sessions/{counterpartID}", h.handleGet)
			r.Delete("/sessions/{counterpartID}", h.handleClose)
			r.Post("/sessions/{counterpartID}/minimize", h.handleMinimize)
			r.Post("/sessions/{counterpartID}/messages", h.handleSend)
			r.Get("/inbox", h.handleInbox)
			r.Get("/ws", h.handleWebSocket)
			r.Get("/stream", h.handleStream)
		})
	})
}

func viewerFrom(r *http.Request) chatService.Viewer {
	return chatService.Viewer{
		ID:    middleware.ViewerID(r.Context()),
		Token: marketplace.TokenFrom(r.Context()),
	}
}

// handleOpen 打开（或复用）与对方的会话窗口
func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CounterpartID string `json:"counterpartId"`
		Name          string `json:"name"`
		Avatar        string `json:"avatar"`
	}
	if err := utils.DecodeJSON(w, r, 0, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.CounterpartID = strings.TrimSpace(payload.CounterpartID)
	if payload.CounterpartID == "" {
		utils.RespondError(w, http.StatusBadRequest, "counterpartId is required")
		return
	}

	recipient := chat.Participant{ID: payload.CounterpartID, Name: payload.Name, Avatar: payload.Avatar}
	session, err := h.chatSvc.Open(r.Context(), viewerFrom(r), payload.CounterpartID, recipient)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleList 列出浏览者当前打开的会话，最早打开的在前
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chatSvc.Sessions(viewerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.Session(viewerFrom(r), chi.URLParam(r, "counterpartID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleClose 关闭会话；进行中的发送不会被取消
func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.Close(viewerFrom(r), chi.URLParam(r, "counterpartID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMinimize(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.ToggleMinimize(viewerFrom(r), chi.URLParam(r, "counterpartID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleSend 发送消息：multipart（text + media[]）或 JSON {"text": ...}。
// 立即返回待确认消息，投递在后台完成。
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	text, files, err := h.readSend(w, r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.chatSvc.Send(r.Context(), viewerFrom(r), chi.URLParam(r, "counterpartID"), text, files)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, msg)
}

func (h *Handler) readSend(w http.ResponseWriter, r *http.Request) (string, []chat.Attachment, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var payload struct {
			Text string `json:"text"`
		}
		if err := utils.DecodeJSON(w, r, 0, &payload); err != nil {
			return "", nil, errors.New("invalid request body")
		}
		return payload.Text, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return "", nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	var files []chat.Attachment
	for _, fh := range r.MultipartForm.File["media[]"] {
		f, err := fh.Open()
		if err != nil {
			return "", nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return "", nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		files = append(files, chat.Attachment{Name: fh.Filename, ContentType: contentType, Data: data})
	}
	return r.FormValue("text"), files, nil
}

// handleInbox 返回会话列表与未读总数
func (h *Handler) handleInbox(w http.ResponseWriter, r *http.Request) {
	inbox, err := h.chatSvc.Inbox(r.Context(), viewerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, inbox)
}

// handlePreview 输出尚在上传中的附件内容
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, ok := h.chatSvc.Preview(chi.URLParam(r, "previewID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "preview not found")
		return
	}
	contentType := preview.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	w.Write(preview.Data)
}

// writeError 将服务层错误映射为HTTP状态码
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chatService.ErrViewerRequired),
		errors.Is(err, chatService.ErrCounterpartRequired),
		errors.Is(err, chatService.ErrEmptyMessage),
		errors.Is(err, chatService.ErrTooManyAttachments):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatService.ErrTokenRequired),
		errors.Is(err, chatService.ErrViewerMismatch):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, chatService.ErrSessionNotOpen):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrSessionLoading):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		httpx.UpstreamError(w, r, err)
	}
}
