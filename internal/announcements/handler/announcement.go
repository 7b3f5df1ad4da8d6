package handler

import (
	"encoding/json"
	"net/http"

	"smartassist/internal/announcements/service"
	apperrors "smartassist/pkg/errors"
	httputil "smartassist/pkg/http"
	"smartassist/pkg/logger"
	"smartassist/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AnnouncementHandler struct {
	service service.AnnouncementService
	log     *logger.Logger
}

func NewAnnouncementHandler(service service.AnnouncementService, log *logger.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{
		service: service,
		log:     log,
	}
}

func (h *AnnouncementHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.AnnouncementCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	announcement, err := h.service.PostAnnouncement(r.Context(), req.Content, req.PostedBy)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, announcement); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *AnnouncementHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	announcements, err := h.service.ListAnnouncements(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WriteSuccess(w, announcements); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAll", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AnnouncementHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AnnouncementHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/announcements", h.GetAll)
	router.POST("/announcements", h.Create)
}
