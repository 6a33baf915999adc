package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
	"github.com/dmitrymomot/broadcaster/pkg/logger"
	"github.com/dmitrymomot/broadcaster/pkg/mailer"
)

// handlerFunc is an http handler whose error is rendered as an envelope.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (a *API) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		e := toError(err)
		level := slog.LevelWarn
		if e.Status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		a.log.Log(r.Context(), level, "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", e.Status),
			slog.String("code", e.Code),
			slog.Any("error", err),
		)
		writeError(w, e)
	}
}

type sendRequest struct {
	BroadcastID id `json:"broadcastId"`
}

type sendResponse struct {
	Message       string `json:"message"`
	ContactsCount int64  `json:"contactsCount"`
}

func (a *API) sendBroadcast(w http.ResponseWriter, r *http.Request) error {
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.BroadcastID <= 0 {
		return errBadRequest("broadcastId is required")
	}

	ctx := logger.WithField(r.Context(), logger.BroadcastID, int64(req.BroadcastID))
	meta, err := a.broadcasts.StartSending(ctx, int64(req.BroadcastID))
	if err != nil {
		return err
	}

	writeData(w, http.StatusOK, sendResponse{
		Message:       "Broadcast queued for sending",
		ContactsCount: meta.ContactsCount,
	})
	return nil
}

type sendTestRequest struct {
	TestEmail   string `json:"testEmail"`
	BroadcastID id     `json:"broadcastId"`
}

func (a *API) sendTest(w http.ResponseWriter, r *http.Request) error {
	var req sendTestRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.BroadcastID <= 0 {
		return errValidation("broadcastId is required")
	}
	req.TestEmail = strings.TrimSpace(req.TestEmail)
	if req.TestEmail == "" {
		return errValidation("testEmail is required")
	}

	ctx := logger.WithField(r.Context(), logger.BroadcastID, int64(req.BroadcastID))
	if err := a.tests.SendTest(ctx, int64(req.BroadcastID), req.TestEmail); err != nil {
		return err
	}

	writeData(w, http.StatusOK, messageData{Message: "Test email sent successfully"})
	return nil
}

type broadcastResponse struct {
	Name   string           `json:"name"`
	Status broadcast.Status `json:"status"`
	Meta   broadcast.Meta   `json:"meta"`
	ID     int64            `json:"id"`
}

func (a *API) getBroadcast(w http.ResponseWriter, r *http.Request) error {
	bid, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || bid <= 0 {
		return errBadRequest("Invalid broadcast id")
	}

	b, err := a.broadcasts.Get(r.Context(), bid)
	if err != nil {
		return err
	}

	writeData(w, http.StatusOK, broadcastResponse{
		ID:     b.ID,
		Name:   b.Name,
		Status: b.Status,
		Meta:   b.Meta,
	})
	return nil
}

type unsubscribeRequest struct {
	Token string `json:"token"`
}

func (a *API) unsubscribe(w http.ResponseWriter, r *http.Request) error {
	var req unsubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	res, err := a.unsubscriber.Unsubscribe(r.Context(), req.Token)
	if err != nil {
		return err
	}

	msg := "Successfully unsubscribed"
	if res.AlreadyUnsubscribed {
		msg = "Already unsubscribed"
	}
	writeData(w, http.StatusOK, messageData{Message: msg})
	return nil
}

type webhookAck struct {
	Received  bool `json:"received"`
	Processed bool `json:"processed"`
}

// webhook acknowledges every authenticated delivery with 200 so the provider
// does not retry; processing failures only show in the logs.
func (a *API) webhook(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errBadRequest("Unable to read request body")
	}

	res, err := a.webhooks.Handle(r.Context(), r.Header, body)
	switch {
	case errors.Is(err, broadcast.ErrWebhookNotConfigured):
		return newError(http.StatusNotImplemented, CodeBadRequest, "Webhook handler not configured for this email adapter")
	case errors.Is(err, mailer.ErrWebhookUnauthorized):
		return errUnauthorized("Invalid webhook signature")
	case errors.Is(err, mailer.ErrWebhookMalformed):
		return errBadRequest("Invalid webhook payload")
	case err != nil:
		a.log.ErrorContext(r.Context(), "email webhook processing failed", slog.Any("error", err))
		writeData(w, http.StatusOK, webhookAck{Received: true})
		return nil
	}

	writeData(w, http.StatusOK, webhookAck{Received: true, Processed: res.Processed})
	return nil
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, newError(http.StatusNotFound, CodeNotFound, "Not found"))
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, newError(http.StatusMethodNotAllowed, CodeBadRequest, "Method not allowed"))
}
