package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/learnhub/settlement/internal/payment/application"
	walletapp "github.com/learnhub/settlement/internal/wallet/application"
	walletdomain "github.com/learnhub/settlement/internal/wallet/domain"
)

// WebhookAuthenticator validates the processor's signature header against
// the raw request body, before any JSON decoding runs.
type WebhookAuthenticator interface {
	Verify(payload []byte, signature string) error
}

const signatureHeader = "Processor-Signature"

type Handler struct {
	log        *slog.Logger
	initiator  *application.Initiator
	verifier   *application.Verifier
	dispatcher *application.Dispatcher
	wallets    *walletapp.Service
	auth       WebhookAuthenticator
	tracer     trace.Tracer
}

func NewHandler(log *slog.Logger, initiator *application.Initiator, verifier *application.Verifier, dispatcher *application.Dispatcher, wallets *walletapp.Service, auth WebhookAuthenticator) *Handler {
	return &Handler{
		log:        log,
		initiator:  initiator,
		verifier:   verifier,
		dispatcher: dispatcher,
		wallets:    wallets,
		auth:       auth,
		tracer:     otel.Tracer("checkout-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/checkout", h.createCheckout)
	r.Get("/checkout/verify", h.verify)
	r.Post("/payments/{id}/retry", h.retryPayment)
	r.Get("/wallets/{ownerID}", h.wallet)
	r.Post("/webhooks/processor", h.webhook)
	return r
}

type createCheckoutReq struct {
	CourseID string `json:"course_id"`
}

func (h *Handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateCheckout")
	defer span.End()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req createCheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CourseID == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	sess, err := h.initiator.CreateCheckoutSession(ctx, req.CourseID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"session_id":   sess.ID,
		"redirect_url": sess.RedirectURL,
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "VerifyPayment")
	defer span.End()

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}

	res, err := h.verifier.Verify(ctx, sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"user_id":   res.UserID,
		"course_id": res.CourseID,
		"outcome":   string(res.Outcome),
	})
}

func (h *Handler) retryPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RetryPayment")
	defer span.End()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid payment id", http.StatusBadRequest)
		return
	}

	sess, err := h.initiator.RetryPayment(ctx, paymentID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"session_id":   sess.ID,
		"redirect_url": sess.RedirectURL,
	})
}

func (h *Handler) wallet(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetWallet")
	defer span.End()

	if r.Header.Get("X-User-ID") == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	view, err := h.wallets.Wallet(ctx, chi.URLParam(r, "ownerID"))
	if errors.Is(err, walletdomain.ErrNotFound) {
		http.Error(w, "wallet not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	type txView struct {
		AmountCents int64     `json:"amount_cents"`
		Kind        string    `json:"kind"`
		Description string    `json:"description"`
		CourseID    string    `json:"course_id,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}
	txs := make([]txView, 0, len(view.Transactions))
	for _, t := range view.Transactions {
		txs = append(txs, txView{
			AmountCents: t.AmountCents,
			Kind:        string(t.Kind),
			Description: t.Description,
			CourseID:    t.CourseID,
			CreatedAt:   t.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"owner_id":      view.OwnerID,
		"balance_cents": view.BalanceCents,
		"transactions":  txs,
	})
}

type webhookBody struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentStatus string `json:"payment_status"`
		} `json:"object"`
	} `json:"data"`
}

// webhook reads the raw body first: the signature covers the exact bytes
// the processor sent, so generic body parsing must not run before it.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProcessorWebhook")
	defer span.End()

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	if err := h.auth.Verify(payload, r.Header.Get(signatureHeader)); err != nil {
		h.log.Warn("webhook signature rejected", "err", err)
		http.Error(w, "bad signature", http.StatusBadRequest)
		return
	}

	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	outcome, err := h.dispatcher.Handle(ctx, application.WebhookEvent{
		Type:      body.Type,
		SessionID: body.Data.Object.ID,
		Paid:      body.Data.Object.PaymentStatus == "paid",
	})
	if err != nil {
		// Internal failure, distinct from "already handled": let the
		// processor redeliver.
		h.log.Error("webhook handling failed", "type", body.Type, "session_id", body.Data.Object.ID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"received": "true", "outcome": string(outcome)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *application.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, application.ErrSessionUnknown), errors.Is(err, application.ErrPaymentNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, application.ErrPaymentNotCompleted):
		http.Error(w, "payment not completed", http.StatusConflict)
	case errors.Is(err, application.ErrNotPaymentOwner):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, application.ErrRetryNotAllowed):
		http.Error(w, "payment is not retryable", http.StatusConflict)
	case errors.Is(err, application.ErrProcessorUnavailable):
		http.Error(w, "payment processor unavailable, try again", http.StatusServiceUnavailable)
	default:
		h.log.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
