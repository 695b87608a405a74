// Package contacthttp implements the contact-form submission endpoint.
//
// A submission runs through a single-pass pipeline: origin check, rate
// limit, field validation, consent, sanitization, mail-provider config
// check, optional reply draft, dispatch. The first failing step answers
// the request; nothing retries.
package contacthttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cyberbrosec/cyberbro-web/internal/draft"
	"github.com/cyberbrosec/cyberbro-web/internal/httpmw"
	"github.com/cyberbrosec/cyberbro-web/internal/log"
	"github.com/cyberbrosec/cyberbro-web/internal/mail"
	"github.com/cyberbrosec/cyberbro-web/internal/metrics"
	"github.com/cyberbrosec/cyberbro-web/internal/ratelimit"
	"github.com/cyberbrosec/cyberbro-web/internal/validate"
)

const maxBodyBytes = 64 << 10

// field limits mirror the form the site renders
const (
	maxNameLen        = 100
	maxMessageLen     = 5000
	maxInstitutionLen = 200
)

// Options carries the handler's dependencies and static config.
type Options struct {
	Logger  log.Logger
	Mailer  mail.Mailer
	Drafter draft.Drafter
	Limiter *ratelimit.FixedWindow
	Metrics *metrics.ServerMetrics

	// AllowedOrigins are the origins accepted for form posts (scheme://host).
	AllowedOrigins []string

	// Recipient is where submissions are delivered. Empty means the
	// deployment is not configured to send mail.
	Recipient string

	FromName  string
	FromEmail string
}

// API implements the contact endpoints.
type API struct {
	opts Options
	log  log.Logger
}

// NewAPI builds the contact handler.
func NewAPI(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &API{opts: opts, log: opts.Logger}
}

// RegisterRoutes attaches the contact endpoint to the router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Post("/api/contact", api.HandleSubmit)
}

// submission is the request body posted by the contact form.
type submission struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Institution string `json:"institution"`
	Message     string `json:"message"`
	Consent     bool   `json:"consent"`
}

// HandleSubmit runs the submission pipeline.
func (api *API) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !validate.Origin(r.Header.Get("Origin"), r.Header.Get("Referer"), api.opts.AllowedOrigins) {
		api.log.Warn(ctx, "contact submission rejected, bad origin",
			"origin", r.Header.Get("Origin"),
			"referer", r.Header.Get("Referer"),
		)
		api.outcome("rejected_origin")
		api.writeJSON(ctx, w, http.StatusForbidden, errorResponse{Error: "invalid request origin"})
		return
	}

	clientIP := httpmw.ClientIPFromContext(ctx)
	if api.opts.Limiter != nil {
		if res := api.opts.Limiter.Check(ctx, clientIP); res.Limited {
			retryAfter := int(api.opts.Limiter.Window().Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			api.outcome("rejected_rate")
			api.writeJSON(ctx, w, http.StatusTooManyRequests, rateLimitedResponse{
				Error:      "too many submissions, please try again later",
				RetryAfter: retryAfter,
			})
			return
		}
	}

	var sub submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sub); err != nil {
		api.outcome("rejected_body")
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if sub.Name == "" || sub.Email == "" || sub.Message == "" {
		api.outcome("rejected_fields")
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "name, email and message are required"})
		return
	}
	if !sub.Consent {
		api.outcome("rejected_consent")
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "consent is required"})
		return
	}

	name := validate.Text(sub.Name, maxNameLen, "name")
	if !name.Valid {
		api.outcome("rejected_fields")
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: name.Err})
		return
	}
	message := validate.Text(sub.Message, maxMessageLen, "message")
	if !message.Valid {
		api.outcome("rejected_fields")
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: message.Err})
		return
	}
	institution := ""
	if strings.TrimSpace(sub.Institution) != "" {
		res := validate.Text(sub.Institution, maxInstitutionLen, "institution")
		if !res.Valid {
			api.outcome("rejected_fields")
			api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: res.Err})
			return
		}
		institution = res.Sanitized
	}

	email := strings.TrimSpace(sub.Email)
	if !validate.Email(email) {
		api.outcome("rejected_fields")
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid email address"})
		return
	}

	if api.opts.Mailer == nil || api.opts.Recipient == "" {
		api.log.Error(ctx, nil, "contact submission dropped, mail provider not configured")
		api.outcome("not_configured")
		api.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "service not configured"})
		return
	}

	// Best effort. A failed draft never fails the submission.
	replyDraft, fromAI := api.draft(ctx, draft.Request{
		Name:        name.Sanitized,
		Email:       email,
		Institution: institution,
		Message:     message.Sanitized,
	})
	if !fromAI && api.opts.Metrics != nil {
		api.opts.Metrics.IncDraftFallback()
	}

	msg := api.buildMessage(name.Sanitized, email, institution, message.Sanitized, replyDraft)
	if err := api.opts.Mailer.Send(ctx, msg); err != nil {
		api.log.Error(ctx, err, "contact mail dispatch failed", "recipient", api.opts.Recipient)
		if api.opts.Metrics != nil {
			api.opts.Metrics.IncMailDispatch("failed")
		}
		api.outcome("dispatch_failed")
		api.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to send message"})
		return
	}
	if api.opts.Metrics != nil {
		api.opts.Metrics.IncMailDispatch("sent")
	}

	api.log.Info(ctx, "contact submission delivered",
		"institution", institution,
		"draft_from_ai", fromAI,
	)
	api.outcome("accepted")
	api.writeJSON(ctx, w, http.StatusOK, successResponse{
		Success: true,
		Message: "Thank you for your message. We'll be in touch soon.",
	})
}

func (api *API) draft(ctx context.Context, req draft.Request) (string, bool) {
	if api.opts.Drafter == nil {
		return draft.Fallback(req.Name), false
	}
	return api.opts.Drafter.Draft(ctx, req)
}

// buildMessage renders the notification mail. User text is HTML-escaped
// here, right before interpolation, and nowhere else.
func (api *API) buildMessage(name, email, institution, message, replyDraft string) mail.Message {
	esc := validate.EscapeHTML

	instRow := ""
	instText := ""
	if institution != "" {
		instRow = fmt.Sprintf("<p><strong>Institution:</strong> %s</p>\n", esc(institution))
		instText = fmt.Sprintf("Institution: %s\n", institution)
	}

	html := fmt.Sprintf(`<h2>New contact form submission</h2>
<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
%s<p><strong>Message:</strong></p>
<p>%s</p>
<hr>
<h3>Suggested reply</h3>
<p>%s</p>
`,
		esc(name),
		esc(email),
		instRow,
		strings.ReplaceAll(esc(message), "\n", "<br>"),
		strings.ReplaceAll(esc(replyDraft), "\n", "<br>"),
	)

	text := fmt.Sprintf("New contact form submission\n\nName: %s\nEmail: %s\n%sMessage:\n%s\n\n-- Suggested reply --\n%s\n",
		name, email, instText, message, replyDraft)

	return mail.Message{
		FromName:     api.opts.FromName,
		FromEmail:    api.opts.FromEmail,
		ToEmail:      api.opts.Recipient,
		ReplyToName:  name,
		ReplyToEmail: email,
		Subject:      fmt.Sprintf("Contact form: %s", name),
		HTMLBody:     html,
		TextBody:     text,
	}
}

func (api *API) outcome(o string) {
	if api.opts.Metrics != nil {
		api.opts.Metrics.IncContactSubmission(o)
	}
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type rateLimitedResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.log.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
