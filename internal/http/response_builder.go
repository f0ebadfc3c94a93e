// Package http serves the fintrack web interface: full pages on GET, HTML
// fragments for HTMX swaps, and HX-Trigger events that keep the other
// fragments of the page in sync after a write.
package http

import (
	"encoding/json"
	"html/template"
	"net/http"

	"fintrack/internal/core"
)

// Client-side events. Pages listen for EventRecordsChanged on the body and
// re-fetch their fragments; realtime pushes raise the same event.
const (
	EventRecordsChanged = "records:changed"
	EventFormReset      = "form:reset"
	EventNotification   = "show-notification"
)

// Toast durations in milliseconds.
const (
	successToastMs = 3000
	errorToastMs   = 5000
)

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

type notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int              `json:"duration"`
}

type recordsChanged struct {
	Kind core.RecordKind `json:"kind"`
	Op   core.ChangeOp   `json:"op"`
}

// HXResponse collects the status, events and fragment of one HTMX answer and
// writes them in a single call, so handlers never interleave header writes.
type HXResponse struct {
	status  int
	events  map[string]any
	headers http.Header
	body    []byte
}

func NewHXResponse() *HXResponse {
	return &HXResponse{status: http.StatusOK, events: map[string]any{}, headers: http.Header{}}
}

func (r *HXResponse) Status(code int) *HXResponse {
	r.status = code
	return r
}

// Trigger raises a client event; payload is sent as the event detail.
func (r *HXResponse) Trigger(event string, payload any) *HXResponse {
	r.events[event] = payload
	return r
}

func (r *HXResponse) RecordsChanged(kind core.RecordKind, op core.ChangeOp) *HXResponse {
	return r.Trigger(EventRecordsChanged, recordsChanged{Kind: kind, Op: op})
}

func (r *HXResponse) ResetForm() *HXResponse {
	return r.Trigger(EventFormReset, struct{}{})
}

func (r *HXResponse) Notify(kind NotificationType, message string, durationMs int) *HXResponse {
	return r.Trigger(EventNotification, notification{Type: kind, Message: message, Duration: durationMs})
}

func (r *HXResponse) Success(message string) *HXResponse {
	return r.Notify(NotificationSuccess, message, successToastMs)
}

func (r *HXResponse) Failure(message string) *HXResponse {
	return r.Notify(NotificationError, message, errorToastMs)
}

func (r *HXResponse) SetHeader(name, value string) *HXResponse {
	r.headers.Set(name, value)
	return r
}

// HTML sets a trusted fragment as the body.
func (r *HXResponse) HTML(fragment string) *HXResponse {
	r.headers.Set("Content-Type", "text/html; charset=utf-8")
	r.body = []byte(fragment)
	return r
}

func (r *HXResponse) Write(w http.ResponseWriter) {
	for name, values := range r.headers {
		w.Header()[name] = values
	}
	if len(r.events) > 0 {
		if data, err := json.Marshal(r.events); err == nil {
			w.Header().Set("HX-Trigger", string(data))
		}
	}
	w.WriteHeader(r.status)
	if len(r.body) > 0 {
		_, _ = w.Write(r.body)
	}
}

// ErrorFragment answers with an escaped error box for the form's error target
// and the same message as an error toast.
func ErrorFragment(status int, message string) *HXResponse {
	return NewHXResponse().
		Status(status).
		Failure(message).
		HTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequest(message string) *HXResponse { return ErrorFragment(http.StatusBadRequest, message) }

func Unprocessable(message string) *HXResponse {
	return ErrorFragment(http.StatusUnprocessableEntity, message)
}

func NotFound(message string) *HXResponse { return ErrorFragment(http.StatusNotFound, message) }

func Unavailable(message string) *HXResponse {
	return ErrorFragment(http.StatusServiceUnavailable, message)
}

func ServerError(message string) *HXResponse {
	return ErrorFragment(http.StatusInternalServerError, message)
}
