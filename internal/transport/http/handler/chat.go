package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"healthshield-ai/internal/app"
	"healthshield-ai/internal/model"
	"healthshield-ai/internal/platform/logger"
	"healthshield-ai/internal/transport/http/middleware"
	"healthshield-ai/internal/transport/http/response"
)

type ChatHandler struct {
	log         *logger.Logger
	chatService *app.ChatService
}

type ChatRequest struct {
	TenantID         string              `json:"tenantId"`
	History          []TurnRequest       `json:"history"`
	Message          string              `json:"message"`
	LocalAttachments []AttachmentRequest `json:"localAttachments"`
	Attachments      []AttachmentRequest `json:"attachments"`
	StoredFileIDs    []string            `json:"storedFileIds"`
	RemoteFileIDs    []string            `json:"remoteFileIds"`
}

type TurnRequest struct {
	Role            string   `json:"role"`
	Text            string   `json:"text"`
	AttachmentNames []string `json:"attachmentNames"`
}

// AttachmentRequest is either flat or wrapped in inlineData.
type AttachmentRequest struct {
	MimeType   string `json:"mimeType"`
	Data       string `json:"data"`
	Name       string `json:"name"`
	InlineData *struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData"`
}

func NewChatHandler(log *logger.Logger, chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chatService: chatService}
}

func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	tenantID, ok := middleware.ResolveTenant(c, req.TenantID)
	if !ok {
		return
	}
	history, ok := convertTurns(req.History)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid history role")
		return
	}

	sink := newStreamSink(c)
	err := h.chatService.StreamChat(c.Request.Context(), app.ChatInput{
		OwnerID:          tenantID,
		History:          history,
		Message:          req.Message,
		LocalAttachments: convertAttachments(append(req.LocalAttachments, req.Attachments...)),
		StoredFileIDs:    append(req.StoredFileIDs, req.RemoteFileIDs...),
	}, sink)
	if err == nil {
		return
	}
	if sink.Started() {
		h.log.Warn("chat stream ended with error", "tenant_id", tenantID, "error", err)
		return
	}

	switch {
	case errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeMessageEmpty, err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrLLMConfig):
		response.Error(c, http.StatusServiceUnavailable, response.CodeLLMUnavailable, "generation service is not configured")
	default:
		h.log.Error("chat failed", "tenant_id", tenantID, "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat failed")
	}
}

func convertTurns(in []TurnRequest) ([]model.Turn, bool) {
	out := make([]model.Turn, 0, len(in))
	for _, t := range in {
		if t.Text == "" && len(t.AttachmentNames) == 0 {
			continue
		}
		role, ok := model.NormalizeRole(t.Role)
		if !ok {
			return nil, false
		}
		out = append(out, model.Turn{Role: role, Text: t.Text, AttachmentNames: t.AttachmentNames})
	}
	return out, true
}

func convertAttachments(in []AttachmentRequest) []model.InlineContent {
	out := make([]model.InlineContent, 0, len(in))
	for _, a := range in {
		item := model.InlineContent{MimeType: a.MimeType, Data: a.Data, Name: a.Name}
		if a.InlineData != nil {
			item.MimeType = firstNonEmpty(item.MimeType, a.InlineData.MimeType)
			item.Data = firstNonEmpty(item.Data, a.InlineData.Data)
		}
		if item.Data == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
