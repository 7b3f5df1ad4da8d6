package handler

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"smartassist/internal/bookings/service"
	apperrors "smartassist/pkg/errors"
	httputil "smartassist/pkg/http"
	"smartassist/pkg/logger"
	"smartassist/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const unavailableStatus = "unavailable"

var actionPage = template.Must(template.New("action").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 50px;">
<h1 style="color: {{.Color}};">{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

type actionView struct {
	Title   string
	Message string
	Color   string
}

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// Confirm creates a pending booking from a proposal. An overlapping slot is
// answered with 409 and the {status: "unavailable"} body the chat client expects.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ProposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Confirm", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := h.service.ProposeBooking(r.Context(), &req)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			appErr := apperrors.AsAppError(err)
			if writeErr := httputil.WriteJSON(w, http.StatusConflict, model.Unavailable{
				Status:  unavailableStatus,
				Message: appErr.Message,
				Code:    appErr.Code,
			}); writeErr != nil {
				h.log.Error("failed to write JSON response", "handler", "Confirm", "operation", "WriteJSON", "error", writeErr)
			}
			return
		}
		h.writeError(w, "Confirm", err)
		return
	}

	if err := httputil.WriteCreated(w, model.NewBookingResponse(booking)); err != nil {
		h.log.Error("failed to write created response", "handler", "Confirm", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetBooking(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	query := r.URL.Query()
	bookings, err := h.service.ListBookings(r.Context(), model.BookingFilter{
		UserID: query.Get("user_id"),
		Status: query.Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAll", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, "UpdateStatus", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := h.service.SetStatus(r.Context(), ps.ByName("id"), update.Status, update.Remarks)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteSuccess", "error", err)
	}
}

// Action serves the approve/reject links mailed to the admin. It answers
// with a small HTML page because it is opened from a mail client.
func (h *BookingHandler) Action(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	query := r.URL.Query()
	status := query.Get("status")

	booking, err := h.service.ApplyAction(r.Context(), id, status, query.Get("token"))
	if err != nil {
		appErr := apperrors.AsAppError(err)
		view := actionView{Title: "Action failed", Message: appErr.Message, Color: "#c0392b"}
		if appErr.Code == apperrors.CodeInternal {
			view.Message = "Something went wrong while updating the booking."
		}
		h.writePage(w, appErr.StatusCode(), view)
		return
	}

	view := actionView{
		Title:   "Booking " + booking.Status,
		Message: booking.Requester + "'s booking of " + booking.Resource + " on " + booking.Date + " at " + booking.Time + " is now " + booking.Status + ".",
		Color:   "#27ae60",
	}
	if booking.Status == model.StatusRejected {
		view.Color = "#c0392b"
	}
	h.writePage(w, http.StatusOK, view)
}

func (h *BookingHandler) writePage(w http.ResponseWriter, status int, view actionView) {
	var buf bytes.Buffer
	if err := actionPage.Execute(&buf, view); err != nil {
		h.log.Error("failed to render action page", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := httputil.WriteHTML(w, status, buf.Bytes()); err != nil {
		h.log.Error("failed to write HTML response", "handler", "Action", "operation", "WriteHTML", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/bookings", h.GetAll)
	router.POST("/bookings/confirm", h.Confirm)
	router.GET("/bookings/:id", h.GetByID)
	router.PATCH("/bookings/:id", h.UpdateStatus)
	router.GET("/bookings/:id/action", h.Action)
}
