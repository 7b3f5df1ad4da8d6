package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	apperrors "smartassist/pkg/errors"
	httputil "smartassist/pkg/http"
	"smartassist/pkg/logger"
	"smartassist/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const (
	DocumentsPath   = "/documents"
	uploadField     = "file"
	pdfExtension    = ".pdf"
	pdfMagic        = "%PDF-"
	multipartMemory = 8 << 20
)

type Handler struct {
	gateway       Gateway
	maxUploadSize int64
	log           *logger.Logger
}

func NewHandler(gateway Gateway, maxUploadSize int64, log *logger.Logger) *Handler {
	return &Handler{
		gateway:       gateway,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Chat", apperrors.InvalidInput("Invalid request body"))
		return
	}

	reply, err := h.gateway.Chat(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Chat", err)
		return
	}

	if err := httputil.WriteSuccess(w, reply); err != nil {
		h.log.Error("failed to write success response", "handler", "Chat", "operation", "WriteSuccess", "error", err)
	}
}

// UploadDocument accepts a single PDF in the "file" form field.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, "UploadDocument", apperrors.New(apperrors.CodeInvalidInput, "Document exceeds the upload size limit", http.StatusRequestEntityTooLarge))
			return
		}
		h.writeError(w, "UploadDocument", apperrors.InvalidInput("Expected a multipart form with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.writeError(w, "UploadDocument", apperrors.InvalidInput("Missing file field"))
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), pdfExtension) {
		h.writeError(w, "UploadDocument", apperrors.InvalidInput("Only PDF documents can be indexed"))
		return
	}

	head := make([]byte, len(pdfMagic))
	n, _ := io.ReadFull(file, head)
	if string(head[:n]) != pdfMagic {
		h.writeError(w, "UploadDocument", apperrors.InvalidInput("File is not a valid PDF document"))
		return
	}

	result, err := h.gateway.IndexDocument(r.Context(), filename, io.MultiReader(bytes.NewReader(head[:n]), file))
	if err != nil {
		h.writeError(w, "UploadDocument", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "UploadDocument", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/chat", h.Chat)
	router.POST(DocumentsPath, h.UploadDocument)
}
