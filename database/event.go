/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"
	"github.com/lib/pq"
)

// RecordWebhookEvent persists one inbound delivery. The unique index on
// event_id arbitrates concurrent duplicates: the losing insert comes back as
// a CONFLICT error, which the ingestor resolves as "already processed".
func (d Datasource) RecordWebhookEvent(ctx context.Context, evt *model.WebhookEvent) (*model.WebhookEvent, error) {
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now()
	}

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO webhook_events (event_id, connection_id, account_id, event_type, raw_payload, signature_valid, processed, error, retry_count, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
		RETURNING id
	`, evt.EventID, evt.ConnectionID, evt.AccountID, evt.EventType, evt.RawPayload, evt.SignatureValid, evt.Processed, evt.Error, evt.RetryCount, evt.ReceivedAt).Scan(&evt.ID)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Webhook event with this event ID already exists", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record webhook event", err)
	}

	return evt, nil
}

func (d Datasource) GetWebhookEventByEventID(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	evt := model.WebhookEvent{}
	var processedAt sql.NullTime
	var processingError sql.NullString

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, event_id, connection_id, account_id, event_type, raw_payload, signature_valid, processed, processed_at, error, retry_count, received_at
		FROM webhook_events
		WHERE event_id = $1
	`, eventID)

	err := row.Scan(&evt.ID, &evt.EventID, &evt.ConnectionID, &evt.AccountID, &evt.EventType, &evt.RawPayload, &evt.SignatureValid, &evt.Processed, &processedAt, &processingError, &evt.RetryCount, &evt.ReceivedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Webhook event not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve webhook event", err)
	}

	if processedAt.Valid {
		evt.ProcessedAt = &processedAt.Time
	}
	evt.Error = processingError.String

	return &evt, nil
}

func (d Datasource) MarkWebhookEventProcessed(ctx context.Context, eventID string, at time.Time) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE webhook_events
		SET processed = TRUE, processed_at = $2, error = NULL
		WHERE event_id = $1
	`, eventID, at)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark webhook event processed", err)
	}
	return nil
}

func (d Datasource) MarkWebhookEventFailed(ctx context.Context, eventID, processingError string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE webhook_events
		SET error = $2, retry_count = retry_count + 1
		WHERE event_id = $1
	`, eventID, processingError)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record webhook event failure", err)
	}
	return nil
}

// GetUnprocessedWebhookEvents returns stored events that have not been
// normalized yet, oldest first. The worker's requeue sweep feeds these back
// onto the retry queue.
func (d Datasource) GetUnprocessedWebhookEvents(ctx context.Context, limit int) ([]model.WebhookEvent, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, event_id, connection_id, account_id, event_type, raw_payload, signature_valid, processed, processed_at, error, retry_count, received_at
		FROM webhook_events
		WHERE processed = FALSE AND signature_valid = TRUE
		ORDER BY received_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve unprocessed webhook events", err)
	}
	defer rows.Close()

	events := []model.WebhookEvent{}

	for rows.Next() {
		evt := model.WebhookEvent{}
		var processedAt sql.NullTime
		var processingError sql.NullString
		err = rows.Scan(&evt.ID, &evt.EventID, &evt.ConnectionID, &evt.AccountID, &evt.EventType, &evt.RawPayload, &evt.SignatureValid, &evt.Processed, &processedAt, &processingError, &evt.RetryCount, &evt.ReceivedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan webhook event data", err)
		}
		if processedAt.Valid {
			evt.ProcessedAt = &processedAt.Time
		}
		evt.Error = processingError.String
		events = append(events, evt)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over webhook events", err)
	}

	return events, nil
}
