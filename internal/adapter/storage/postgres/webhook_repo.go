package postgres

import (
	"context"
	"fmt"

	"nft-marketplace/internal/core/domain"
)

// WebhookRepo implements ports.WebhookRepository.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a PostgreSQL-backed webhook delivery log.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

func (r *WebhookRepo) Create(ctx context.Context, log *domain.WebhookDeliveryLog) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO webhook_delivery_logs
		 (id, event_seq, webhook_url, payload, http_status, attempt, status, last_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		log.ID, int64(log.EventSeq), log.WebhookURL, log.Payload,
		log.HTTPStatus, log.Attempt, string(log.Status), log.LastError, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}

// ListByEvent returns the attempts for one event, oldest first.
func (r *WebhookRepo) ListByEvent(ctx context.Context, seq uint64) ([]domain.WebhookDeliveryLog, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, event_seq, webhook_url, payload, http_status, attempt, status, last_error, created_at
		 FROM webhook_delivery_logs
		 WHERE event_seq = $1
		 ORDER BY attempt, created_at`, int64(seq))
	if err != nil {
		return nil, fmt.Errorf("list webhook logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.WebhookDeliveryLog
	for rows.Next() {
		var (
			l        domain.WebhookDeliveryLog
			eventSeq int64
			status   string
		)
		if err := rows.Scan(
			&l.ID, &eventSeq, &l.WebhookURL, &l.Payload, &l.HTTPStatus,
			&l.Attempt, &status, &l.LastError, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook log: %w", err)
		}
		l.EventSeq = uint64(eventSeq)
		l.Status = domain.WebhookStatus(status)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
