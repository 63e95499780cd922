package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"portal-agent/internal/domain"
	"portal-agent/internal/service"
	"portal-agent/pkg/errors"
	"portal-agent/pkg/logger"

	"golang.org/x/oauth2"
)

// maxBodyBytes caps how much of a backend response is read
const maxBodyBytes = 1 << 20

// Options configures the portal backend client
type Options struct {
	BaseURL    string
	Token      string
	TenantSlug string
	Timeout    time.Duration
	// Transport overrides the underlying round tripper, mostly for tests
	Transport http.RoundTripper
}

// Client talks to the portal backend REST API on behalf of one session
type Client struct {
	baseURL    string
	tenant     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a backend client whose requests carry the session's
// bearer token
func NewClient(opts Options, logger *logger.Logger) *Client {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"})

	return &Client{
		baseURL: opts.BaseURL,
		tenant:  opts.TenantSlug,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: base},
			Timeout:   timeout,
		},
		logger: logger,
	}
}

var _ service.VettingAPI = (*Client)(nil)

type statusResponse struct {
	Status string `json:"status"`
}

// GetCommitteeStatus handles GET /vetting-committee/status?event_id=
func (c *Client) GetCommitteeStatus(ctx context.Context, eventID int) (domain.CommitteeStatus, error) {
	query := url.Values{"event_id": {strconv.Itoa(eventID)}}

	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/vetting-committee/status?"+query.Encode(), nil, "", &resp); err != nil {
		return domain.StatusUnknown, err
	}

	status := domain.ParseCommitteeStatus(resp.Status)
	if status == domain.StatusUnknown {
		c.logger.WithField("status", resp.Status).Warn("Backend returned an unrecognised committee status")
	}
	return status, nil
}

// SubmitForApproval handles POST /vetting-committee/{eventId}/submit
func (c *Client) SubmitForApproval(ctx context.Context, eventID int, idempotencyKey string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/vetting-committee/%d/submit", eventID), nil, idempotencyKey, nil)
}

// ApproveVetting handles POST /vetting-committee/{eventId}/approve
func (c *Client) ApproveVetting(ctx context.Context, eventID int, template domain.EmailTemplate, idempotencyKey string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/vetting-committee/%d/approve", eventID), template, idempotencyKey, nil)
}

// CancelApproval handles POST /vetting-committee/{eventId}/cancel
func (c *Client) CancelApproval(ctx context.Context, eventID int, idempotencyKey string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/vetting-committee/%d/cancel", eventID), nil, idempotencyKey, nil)
}

// GetEmailTemplate handles GET /vetting-committee/{eventId}/email-template
func (c *Client) GetEmailTemplate(ctx context.Context, eventID int) (*domain.EmailTemplate, error) {
	var tpl domain.EmailTemplate
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/vetting-committee/%d/email-template", eventID), nil, "", &tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// SaveEmailTemplate handles POST /vetting-committee/{eventId}/email-template
func (c *Client) SaveEmailTemplate(ctx context.Context, eventID int, template domain.EmailTemplate) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/vetting-committee/%d/email-template", eventID), template, "", nil)
}

// ListParticipants handles GET /events/{eventId}/participants
func (c *Client) ListParticipants(ctx context.Context, eventID int) ([]domain.Participant, error) {
	var participants []domain.Participant
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/events/%d/participants", eventID), nil, "", &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

type participantVettingRequest struct {
	Status          string `json:"status"`
	VettingComments string `json:"vetting_comments"`
}

// UpdateParticipantVetting handles PATCH /event-participants/{id}/vetting
func (c *Client) UpdateParticipantVetting(ctx context.Context, participantID int, status, comment string) error {
	body := participantVettingRequest{Status: status, VettingComments: comment}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/event-participants/%d/vetting", participantID), body, "", nil)
}

// do performs one request. Non-2xx responses become external errors
// carrying the backend's message when one can be extracted.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, idempotencyKey string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternalError("Failed to encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.NewInternalError("Failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Tenant-ID", c.tenant)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"method": method,
			"path":   path,
		}).Warn("Backend request failed")
		return errors.NewExternalError("Unable to reach the portal backend", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errors.NewExternalError("Failed to read backend response", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": resp.StatusCode,
		"duration":    time.Since(start).String(),
	}).Debug("Backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.NewExternalError("Failed to parse backend response", err)
	}
	return nil
}

// statusError maps a backend status code onto the agent's error taxonomy
func statusError(code int, body []byte) *errors.AppError {
	message := errors.ExtractMessage(body)
	internal := fmt.Errorf("backend returned status %d", code)

	var appErr *errors.AppError
	switch code {
	case http.StatusUnauthorized:
		appErr = errors.NewAuthenticationError(orDefault(message, "Session expired, please sign in again"))
	case http.StatusForbidden:
		appErr = errors.NewPermissionError(orDefault(message, "You are not allowed to perform this action"))
	case http.StatusNotFound:
		appErr = errors.NewNotFoundError(orDefault(message, "Resource not found"))
	case http.StatusConflict:
		appErr = errors.NewConflictError(orDefault(message, "The request conflicts with the current state"))
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		appErr = errors.NewValidationError(orDefault(message, "The request was rejected"), nil)
	default:
		appErr = errors.NewExternalError(orDefault(message, "The portal backend returned an error"), nil)
	}
	appErr.Internal = internal
	if message == "" {
		appErr.Details = map[string]interface{}{"fallback": true}
	}
	return appErr
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
