package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Webhook request headers.
const (
	HeaderWebhookSignature = "X-Signature"
	HeaderWebhookTimestamp = "X-Timestamp"
	HeaderWebhookEventID   = "X-Event-Id"
	HeaderWebhookEventType = "X-Event-Type"
)

// DefaultWebhookRetryIntervals are the waits before each retry of a delivery.
var DefaultWebhookRetryIntervals = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookPublisher implements ports.EventPublisher by POSTing each event,
// HMAC-signed, to a fixed URL.
type WebhookPublisher struct {
	url            string
	secret         string
	sigSvc         ports.SignatureService
	httpClient     HTTPClient
	repo           ports.WebhookRepository
	retryIntervals []time.Duration
	log            zerolog.Logger
}

// NewWebhookPublisher creates a new webhook publisher. repo may be nil.
func NewWebhookPublisher(
	url string,
	secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	repo ports.WebhookRepository,
	retryIntervals []time.Duration,
	log zerolog.Logger,
) *WebhookPublisher {
	return &WebhookPublisher{
		url:            url,
		secret:         secret,
		sigSvc:         sigSvc,
		httpClient:     httpClient,
		repo:           repo,
		retryIntervals: retryIntervals,
		log:            log,
	}
}

// Name implements ports.EventPublisher.
func (p *WebhookPublisher) Name() string { return "webhook" }

// Publish delivers event, retrying non-2xx answers and transport errors.
// It returns an error once every attempt failed so the relay retries later.
func (p *WebhookPublisher) Publish(ctx context.Context, event domain.EventPayload) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(p.retryIntervals); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryIntervals[attempt-1]):
			}
		}

		status, err := p.deliver(ctx, event, body)
		p.record(ctx, event.Seq, body, attempt+1, status, err)
		if err == nil {
			p.log.Info().Uint64("seq", event.Seq).Int("attempt", attempt+1).Int("status", status).Msg("webhook: delivered successfully")
			return nil
		}
		lastErr = err
		p.log.Warn().Err(err).Uint64("seq", event.Seq).Int("attempt", attempt+1).Msg("webhook: delivery failed")
	}

	p.log.Error().Uint64("seq", event.Seq).Msg("webhook: all retry attempts exhausted")
	return fmt.Errorf("webhook: event %d undelivered: %w", event.Seq, lastErr)
}

func (p *WebhookPublisher) deliver(ctx context.Context, event domain.EventPayload, body []byte) (int, error) {
	ts := time.Now().Unix()
	signature := p.sigSvc.Sign(p.secret, p.sigSvc.BuildCanonicalString(ts, event.ID, string(body)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookSignature, signature)
	req.Header.Set(HeaderWebhookTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderWebhookEventID, event.ID)
	req.Header.Set(HeaderWebhookEventType, string(event.Type))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (p *WebhookPublisher) record(ctx context.Context, seq uint64, body []byte, attempt, status int, deliveryErr error) {
	if p.repo == nil {
		return
	}
	entry := &domain.WebhookDeliveryLog{
		ID:         uuid.New(),
		EventSeq:   seq,
		WebhookURL: p.url,
		Payload:    string(body),
		Attempt:    attempt,
		Status:     domain.WebhookStatusDelivered,
		CreatedAt:  time.Now().UTC(),
	}
	if status != 0 {
		entry.HTTPStatus = &status
	}
	if deliveryErr != nil {
		msg := deliveryErr.Error()
		entry.Status = domain.WebhookStatusFailed
		entry.LastError = &msg
	}
	if err := p.repo.Create(ctx, entry); err != nil {
		p.log.Warn().Err(err).Uint64("seq", seq).Msg("webhook: failed to record delivery attempt")
	}
}
