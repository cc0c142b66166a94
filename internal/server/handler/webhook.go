// Package handler provides HTTP handlers for the Jules Warden application.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/jules-warden/internal/config"
	"github.com/sevigo/jules-warden/internal/core"
	"github.com/sevigo/jules-warden/internal/dedupe"
)

// WebhookHandler processes incoming webhooks from GitHub.
type WebhookHandler struct {
	cfg        *config.Config
	dispatcher core.JobDispatcher
	deduper    *dedupe.Deduper
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler with the given configuration and dispatcher.
func NewWebhookHandler(cfg *config.Config, dispatcher core.JobDispatcher, deduper *dedupe.Deduper, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg:        cfg,
		dispatcher: dispatcher,
		deduper:    deduper,
		logger:     logger,
	}
}

// Handle processes GitHub webhook requests. The signature is verified before
// anything else; duplicate deliveries are acknowledged with 200 but never
// dispatched twice.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, []byte(h.cfg.GitHubWebhookSecret))
	if err != nil {
		h.logger.Error("invalid webhook payload signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	deliveryID := github.DeliveryID(r)
	if deliveryID != "" && !h.deduper.ShouldProcess(deliveryID) {
		h.logger.Info("duplicate webhook delivery acknowledged", "delivery_id", deliveryID)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "Duplicate delivery ignored")
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		h.logger.Error("could not parse webhook", "error", err)
		http.Error(w, "Could not parse webhook", http.StatusBadRequest)
		return
	}

	switch e := event.(type) {
	case *github.PullRequestEvent:
		h.handlePullRequest(r.Context(), w, e, deliveryID)
	case *github.PushEvent:
		h.handlePush(r.Context(), w, e, deliveryID)
	default:
		h.logger.Debug("ignoring unhandled webhook event type", "type", github.WebHookType(r))
		_, _ = fmt.Fprint(w, "Event type not handled")
	}
}

// handlePullRequest processes pull request events from GitHub.
func (h *WebhookHandler) handlePullRequest(ctx context.Context, w http.ResponseWriter, event *github.PullRequestEvent, deliveryID string) {
	reviewEvent, err := core.EventFromPullRequest(event, deliveryID)
	if err != nil {
		h.logger.Debug("ignoring pull request event", "reason", err.Error(), "repo", event.GetRepo().GetFullName())
		_, _ = fmt.Fprint(w, "Event ignored")
		return
	}
	h.dispatch(ctx, w, reviewEvent)
}

// handlePush processes push events from GitHub.
func (h *WebhookHandler) handlePush(ctx context.Context, w http.ResponseWriter, event *github.PushEvent, deliveryID string) {
	reviewEvent, err := core.EventFromPush(event, deliveryID)
	if err != nil {
		h.logger.Debug("ignoring push event", "reason", err.Error(), "repo", event.GetRepo().GetFullName())
		_, _ = fmt.Fprint(w, "Event ignored")
		return
	}
	h.logger.Info("push event accepted",
		"repo", reviewEvent.RepoFullName, "branch", reviewEvent.Branch(), "after", reviewEvent.AfterSHA)
	h.dispatch(ctx, w, reviewEvent)
}

func (h *WebhookHandler) dispatch(ctx context.Context, w http.ResponseWriter, event *core.EventContext) {
	job := &core.ReviewJob{
		Event:      event,
		DeliveryID: event.DeliveryID,
		EnqueuedAt: time.Now(),
	}
	if err := h.dispatcher.Dispatch(ctx, job); err != nil {
		// The delivery never made it into the queue, so forget its ID:
		// GitHub's redelivery must be processed, not rejected as a duplicate.
		h.deduper.Forget(event.DeliveryID)
		h.logger.Error("failed to dispatch review job", "error", err, "target", event.Target())
		http.Error(w, "Failed to start review job", http.StatusServiceUnavailable)
		return
	}

	h.logger.Info("review job dispatched successfully", "target", event.Target(), "delivery_id", event.DeliveryID)
	w.WriteHeader(http.StatusAccepted)
	_, _ = fmt.Fprint(w, "Review job accepted")
}
