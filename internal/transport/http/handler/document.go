package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"healthshield-ai/internal/app"
	"healthshield-ai/internal/model"
	"healthshield-ai/internal/transport/http/middleware"
	"healthshield-ai/internal/transport/http/response"
)

type DocumentHandler struct {
	documentService *app.DocumentService
}

// UploadRequest also accepts the field names the web client used to send.
type UploadRequest struct {
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	FolderClass string `json:"folderClass"`
	Folder      string `json:"folder"`
	Data        string `json:"data"`
}

type documentList struct {
	Files []model.Document `json:"files"`
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	tenantID, ok := middleware.ResolveTenant(c, req.TenantID)
	if !ok {
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), app.UploadInput{
		OwnerID:  tenantID,
		Name:     req.Name,
		MimeType: firstNonEmpty(req.MimeType, req.Type),
		Size:     req.Size,
		Folder:   firstNonEmpty(req.FolderClass, req.Folder),
		Data:     req.Data,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnsupportedFolder):
			response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFolder, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrPayloadTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, err.Error())
		case errors.Is(err, app.ErrStorage):
			response.Error(c, http.StatusInternalServerError, response.CodeStorageFailed, "store document failed")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload document failed")
		}
		return
	}

	response.OK(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	tenantID, ok := middleware.ResolveTenant(c, c.Query("tenant_id"))
	if !ok {
		return
	}

	docs, err := h.documentService.ListDocuments(c.Request.Context(), tenantID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		}
		return
	}
	if docs == nil {
		docs = []model.Document{}
	}

	response.OK(c, documentList{Files: docs})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
