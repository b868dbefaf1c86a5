package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/campaign"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/jobqueue"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/monitoring"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/order"
)

// Handler holds dependencies for REST API handlers
type Handler struct {
	orders     *order.Service
	dispatcher *campaign.Dispatcher
	queue      jobqueue.Store
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	validator  *validator.Validate
}

// NewHandler creates a new REST API handler
func NewHandler(
	orders *order.Service,
	dispatcher *campaign.Dispatcher,
	queue jobqueue.Store,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		orders:     orders,
		dispatcher: dispatcher,
		queue:      queue,
		metrics:    metrics,
		logger:     logger,
		validator:  validator.New(),
	}
}

// CreateOrderRequest represents the request body for creating orders
type CreateOrderRequest struct {
	CustomerEmail string  `json:"customer_email" validate:"required,email"`
	Subtotal      float64 `json:"subtotal" validate:"gte=0"`
	TaxGST        float64 `json:"tax_gst" validate:"gte=0"`
	TaxQST        float64 `json:"tax_qst" validate:"gte=0"`
	DeliveryFee   float64 `json:"delivery_fee" validate:"gte=0"`
	Total         float64 `json:"total" validate:"required,gt=0"`
}

// TransitionOrderRequest represents the request body for order transitions
type TransitionOrderRequest struct {
	Target           string `json:"target,omitempty"`
	DeliveryTarget   string `json:"delivery_target,omitempty"`
	ExpectedStatus   string `json:"expected_status" validate:"required"`
	ExpectedDelivery string `json:"expected_delivery_status" validate:"required"`
	Actor            string `json:"actor" validate:"required"`
	Note             string `json:"note,omitempty"`
	DelayReason      string `json:"delay_reason,omitempty"`
}

// PaymentEventRequest represents an inbound payment webhook
type PaymentEventRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Event   string `json:"event" validate:"required,oneof=succeeded failed"`
}

// EngagementEventRequest represents an inbound tracking event
type EngagementEventRequest struct {
	Kind string `json:"kind" validate:"required,oneof=opened clicked bounced"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// CreateOrder handles POST /orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeErrorResponse(w, fmt.Sprintf("Validation error: %v", err), http.StatusBadRequest)
		return
	}

	ord, err := h.orders.Create(r.Context(), &order.Order{
		CustomerEmail: req.CustomerEmail,
		Subtotal:      req.Subtotal,
		TaxGST:        req.TaxGST,
		TaxQST:        req.TaxQST,
		DeliveryFee:   req.DeliveryFee,
		Total:         req.Total,
	})
	if err != nil {
		h.logger.Error("Failed to create order", zap.Error(err))
		h.writeErrorResponse(w, "Failed to create order", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, ord)
}

// GetOrder handles GET /orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ord, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ord)
}

// TransitionOrder handles POST /orders/{id}/transition
func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req TransitionOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeErrorResponse(w, fmt.Sprintf("Validation error: %v", err), http.StatusBadRequest)
		return
	}

	ord, err := h.orders.Transition(r.Context(), id, order.TransitionRequest{
		Target:           order.Status(req.Target),
		DeliveryTarget:   order.DeliveryStatus(req.DeliveryTarget),
		ExpectedStatus:   order.Status(req.ExpectedStatus),
		ExpectedDelivery: order.DeliveryStatus(req.ExpectedDelivery),
		Actor:            req.Actor,
		Note:             req.Note,
		DelayReason:      req.DelayReason,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.OrderTransitions.WithLabelValues(order.StatePair(ord.Status, ord.DeliveryStatus)).Inc()
	}
	h.writeJSON(w, http.StatusOK, ord)
}

// PaymentEvent handles POST /payments/events
func (h *Handler) PaymentEvent(w http.ResponseWriter, r *http.Request) {
	var req PaymentEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeErrorResponse(w, fmt.Sprintf("Validation error: %v", err), http.StatusBadRequest)
		return
	}

	var ord *order.Order
	var err error
	if req.Event == "succeeded" {
		ord, err = h.orders.HandlePaymentSucceeded(r.Context(), req.OrderID)
	} else {
		ord, err = h.orders.HandlePaymentFailed(r.Context(), req.OrderID)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ord)
}

// ListJobs handles GET /jobs?status=failed&older_than=1h, the operational
// introspection surface for stuck and failed jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := jobqueue.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = jobqueue.StatusFailed
	}
	switch status {
	case jobqueue.StatusPending, jobqueue.StatusSending, jobqueue.StatusSent, jobqueue.StatusFailed:
	default:
		h.writeErrorResponse(w, "Unknown job status", http.StatusBadRequest)
		return
	}

	olderThan := time.Duration(0)
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			h.writeErrorResponse(w, "Invalid older_than duration", http.StatusBadRequest)
			return
		}
		olderThan = parsed
	}

	jobs, err := h.queue.ListByStatus(r.Context(), status, olderThan)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		h.writeErrorResponse(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*jobqueue.Job{}
	}
	h.writeJSON(w, http.StatusOK, jobs)
}

// DispatchCampaign handles POST /campaigns/{id}/dispatch
func (h *Handler) DispatchCampaign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	enqueued, err := h.dispatcher.Dispatch(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if h.metrics != nil && enqueued > 0 {
		h.metrics.CampaignsDispatched.Inc()
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"enqueued": enqueued})
}

// CampaignStats handles GET /campaigns/{id}/stats
func (h *Handler) CampaignStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	stats, err := h.dispatcher.Stats(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// CampaignEngagement handles POST /campaigns/{id}/events
func (h *Handler) CampaignEngagement(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req EngagementEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeErrorResponse(w, fmt.Sprintf("Validation error: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.dispatcher.RecordEngagement(r.Context(), id, campaign.EngagementKind(req.Kind)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "fulfillment-api",
		"version":   "1.0.0",
	}
	h.writeJSON(w, http.StatusOK, health)
}

// Metrics handles GET /metrics (Prometheus metrics)
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler().ServeHTTP(w, r)
}

// SetupRoutes sets up all REST API routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/transition", h.TransitionOrder).Methods("POST")
	api.HandleFunc("/payments/events", h.PaymentEvent).Methods("POST")
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/campaigns/{id}/dispatch", h.DispatchCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{id}/stats", h.CampaignStats).Methods("GET")
	api.HandleFunc("/campaigns/{id}/events", h.CampaignEngagement).Methods("POST")

	// Health and metrics
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/metrics", h.Metrics).Methods("GET")

	// Add middleware
	router.Use(h.loggingMiddleware)

	return router
}

// writeDomainError maps domain errors onto HTTP status codes
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var invalid *order.InvalidTransitionError
	var conflict *order.ConcurrentModificationError

	switch {
	case errors.As(err, &invalid):
		if h.metrics != nil {
			h.metrics.TransitionsRejected.WithLabelValues("invalid_transition").Inc()
		}
		h.writeErrorResponse(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &conflict):
		if h.metrics != nil {
			h.metrics.TransitionsRejected.WithLabelValues("concurrent_modification").Inc()
		}
		h.writeErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, order.ErrDelayReasonRequired), errors.Is(err, order.ErrNoTarget),
		errors.Is(err, campaign.ErrUnknownEngagementKind):
		h.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, jobqueue.ErrJobNotFound),
		errors.Is(err, campaign.ErrCampaignNotFound):
		h.writeErrorResponse(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("Request failed", zap.Error(err))
		h.writeErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes an error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}
	h.writeJSON(w, statusCode, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// loggingMiddleware logs HTTP requests
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		h.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}

// responseRecorder wraps http.ResponseWriter to capture status code
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
