package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"ms-registration/internal/auth"
	"ms-registration/internal/counters"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/reconcile"
	"ms-registration/internal/utils"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type RegistrationService interface {
	RegisterWebhook(ctx context.Context, eventID string, body []byte) (*models.Record, error)
	Get(ctx context.Context, eventID, email string) (*models.Record, error)
	GetByPhoneNumber(ctx context.Context, eventID, phone string) (*models.Record, error)
	Counters(ctx context.Context, eventID string) (counters.Snapshot, error)
	CheckIn(ctx context.Context, eventID, email, who string) (*models.Record, error)
	CancelCheckIn(ctx context.Context, eventID, email, who string) (*models.Record, error)
	ConfirmPayment(ctx context.Context, eventID, email string, req models.PaymentRequest) (*models.Record, error)
	UpdateMetadata(ctx context.Context, eventID, email string, req models.UpdateRequest) (*models.Record, error)
	ResendNotification(ctx context.Context, eventID, email, template string) error
}

type Reconciler interface {
	Run(ctx context.Context, eventID string) (*reconcile.Result, error)
}

type Handler struct {
	Service    RegistrationService
	Reconciler Reconciler
	Logger     *logger.Logger
}

func NewHandler(svc RegistrationService, rec Reconciler, l *logger.Logger) *Handler {
	if l == nil {
		l = logger.Discard()
	}
	return &Handler{Service: svc, Reconciler: rec, Logger: l}
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrPreconditionFailed):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		utils.WriteError(w, status, "internal error")
		return
	}
	utils.WriteError(w, status, err.Error())
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read body: %v: %w", err, models.ErrValidation)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, models.ErrValidation)
	}
	return nil
}

// Webhook registers a raw form submission.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	rec, err := h.Service.RegisterWebhook(r.Context(), pathParam(r, "event"), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Registration saved", rec)
}

func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.Get(r.Context(), pathParam(r, "event"), pathParam(r, "email"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Participant found", rec)
}

func (h *Handler) GetByPhone(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.GetByPhoneNumber(r.Context(), pathParam(r, "event"), pathParam(r, "phone"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Participant found", rec)
}

func (h *Handler) GetCounters(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Counters(r.Context(), pathParam(r, "event"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Counters", snap)
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.CheckIn(r.Context(), pathParam(r, "event"), pathParam(r, "email"), auth.Principal(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Checked in", rec)
}

func (h *Handler) CancelCheckIn(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.CancelCheckIn(r.Context(), pathParam(r, "event"), pathParam(r, "email"), auth.Principal(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Check-in cancelled", rec)
}

// ConfirmPayment expects {"amount", "byWho", "paymentFile"}; byWho defaults to the caller.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ByWho == "" {
		req.ByWho = auth.Principal(r.Context())
	}
	rec, err := h.Service.ConfirmPayment(r.Context(), pathParam(r, "event"), pathParam(r, "email"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment confirmed", rec)
}

func (h *Handler) UpdateParticipant(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.Service.UpdateMetadata(r.Context(), pathParam(r, "event"), pathParam(r, "email"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Participant updated", rec)
}

func (h *Handler) ResendEmail(w http.ResponseWriter, r *http.Request) {
	err := h.Service.ResendNotification(r.Context(), pathParam(r, "event"), pathParam(r, "email"), pathParam(r, "template"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusAccepted, "Notification queued", nil)
}

func (h *Handler) ReconcileCounters(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reconciler.Run(r.Context(), pathParam(r, "event"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, res.Message, res)
}

func Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "ok", map[string]string{"status": "UP"})
}
