package onboarding

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lumenhq/onboard-api/internal/auth"
	"github.com/lumenhq/onboard-api/internal/billing"
	"github.com/lumenhq/onboard-api/internal/httputil"
	"github.com/lumenhq/onboard-api/internal/logging"
	"github.com/lumenhq/onboard-api/internal/preferences"
	"github.com/lumenhq/onboard-api/internal/ratelimit"
)

// heartbeatInterval paces SSE keep-alives so clients can surface a
// "taking longer than expected" state when the stream stalls.
var heartbeatInterval = 15 * time.Second

// Handler contains HTTP handlers for the onboarding flow
type Handler struct {
	service     *Service
	watcher     *preferences.Watcher
	rateLimiter *ratelimit.Limiter
	logger      *logging.Logger
}

func NewHandler(service *Service, watcher *preferences.Watcher, rateLimiter *ratelimit.Limiter, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		watcher:     watcher,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// SelectPlanRequest represents the plan selection request body
type SelectPlanRequest struct {
	PlanID string `json:"plan_id"`
}

// Destination handles the navigation guard's decision lookup
// @Summary      Resolve canonical destination
// @Description  Compute where the authenticated user should currently be routed
// @Tags         onboarding
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} Destination
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Router       /onboarding/destination [get]
func (h *Handler) Destination(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	dest := h.service.Destination(r.Context(), userID)
	httputil.RespondJSON(w, dest, http.StatusOK)
}

// Plans lists the selectable plan catalog
// @Summary      List plans
// @Description  Return the subscription plan catalog shown during onboarding
// @Tags         onboarding
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} billing.Plan
// @Router       /onboarding/plans [get]
func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, billing.Catalog(), http.StatusOK)
}

// SelectPlan records a plan choice and returns the checkout redirect
// @Summary      Select a plan
// @Description  Record the tentative plan choice and return the hosted checkout URL. The custom plan routes to sales instead.
// @Tags         onboarding
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body SelectPlanRequest true "Chosen plan"
// @Success      200 {object} Selection
// @Failure      400 {object} httputil.ErrorResponse "Unknown plan"
// @Failure      409 {object} httputil.ErrorResponse "Selection already in flight"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /onboarding/plan [post]
func (h *Handler) SelectPlan(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}
	email, _ := auth.GetUserEmailFromContext(r.Context())

	ip := httputil.ClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "select_plan")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for plan selection", "ip", ip)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req SelectPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid plan selection request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "select_plan"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	selection, err := h.service.SelectPlan(r.Context(), userID, email, req.PlanID)
	if err != nil {
		if errors.Is(err, billing.ErrUnknownPlan) {
			logger.Warn("plan selection failed: unknown plan", "plan", req.PlanID)
			httputil.RespondErrorWithCode(w, "unknown plan", httputil.CodeUnknownPlan, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrSelectionInFlight) {
			logger.Warn("plan selection already in flight", "user_id", userID)
			httputil.RespondErrorWithCode(w, "a checkout redirect is already being prepared", httputil.CodeSelectionInFlight, http.StatusConflict)
			return
		}
		logger.Error("plan selection failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to select plan", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, selection, http.StatusOK)
}

// Complete reconciles state after the checkout return redirect
// @Summary      Complete onboarding
// @Description  Invoked by the billing provider's return redirect. Marks onboarding complete, resyncs the subscription and forwards to the dashboard. The user id comes from the session, never from redirect parameters.
// @Tags         onboarding
// @Security     BearerAuth
// @Success      303 {string} string "Redirect to the dashboard"
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Router       /onboarding/complete [get]
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		// Completion for an unauthenticated session is a correlation
		// failure, never an assumed success.
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}
	email, _ := auth.GetUserEmailFromContext(r.Context())

	dest := h.service.Complete(r.Context(), userID, email)

	http.Redirect(w, r, dest.Path, http.StatusSeeOther)
}

// Events streams destination updates to the client navigation guard
// @Summary      Watch destination changes
// @Description  Server-sent events stream. Emits the current destination immediately, then again whenever the user's preferences row changes.
// @Tags         onboarding
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200 {string} string "SSE stream of Destination objects"
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Router       /onboarding/events [get]
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondErrorWithCode(w, "streaming unsupported", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	// The server's write timeout would tear the stream down before the
	// first heartbeat; clear the deadline for this response only.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Warn("failed to clear write deadline for event stream", "error", err.Error())
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := h.watcher.Subscribe(r.Context(), userID)
	defer sub.Close()

	// Emit the settled destination up front so the guard never has to
	// assert a route before its inputs resolve.
	h.writeDestinationEvent(w, flusher, r)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, open := <-sub.Events():
			if !open {
				logger.Warn("preference change feed closed", "user_id", userID)
				return
			}
			// The event carries the new row state, but the destination
			// depends on subscription state too; recompute from scratch.
			h.writeDestinationEvent(w, flusher, r)
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func (h *Handler) writeDestinationEvent(w http.ResponseWriter, flusher http.Flusher, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	dest := h.service.Destination(r.Context(), userID)

	payload, err := json.Marshal(dest)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: destination\ndata: %s\n\n", payload)
	flusher.Flush()
}
