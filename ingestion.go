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

package leadflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"
)

// IngestRequest carries one inbound webhook delivery. RawBody must hold the
// exact bytes read from the wire; signature verification runs over them
// before anything is parsed.
type IngestRequest struct {
	ExternalID string
	Signature  string
	RawBody    []byte
}

// IngestResult is the acknowledgement returned to the sender.
type IngestResult struct {
	EventID   string `json:"event_id"`
	Message   string `json:"message"`
	Duplicate bool   `json:"-"`
}

// IngestEvent runs one delivery through the full pipeline: authenticate,
// deduplicate, store, dispatch, record outcome. Duplicates and
// normalization failures are acknowledged as success; only failures before
// the raw event is stored surface as errors to the sender.
func (l *Leadflow) IngestEvent(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	ctx, span := otel.Tracer("leadflow.ingestion").Start(ctx, "IngestEvent")
	defer span.End()

	if req.ExternalID == "" || req.Signature == "" {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Missing connection identifier or signature header", nil)
	}

	conf, err := config.Fetch()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Configuration unavailable", err)
	}

	conn, err := l.getConnectionByExternalID(ctx, req.ExternalID)
	if err != nil {
		if apierror.Is(err, apierror.ErrNotFound) {
			return nil, apierror.NewAPIError(apierror.ErrAuthentication, "Unknown connection", nil)
		}
		// Registry unreachable before anything is stored: let the sender retry.
		return nil, err
	}

	if !conn.IsActive() {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Connection is inactive", nil)
	}

	if !VerifySignature(req.RawBody, req.Signature, conn.CurrentSecret, conn.PreviousSecret, conn.SecretRotatedAt, conf.Webhook.GraceWindow()) {
		l.recordForensicFailure(ctx, conn, req.RawBody)
		return nil, apierror.NewAPIError(apierror.ErrAuthentication, "Invalid signature", nil)
	}

	var envelope model.WebhookEnvelope
	if err := json.Unmarshal(req.RawBody, &envelope); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Request body is not valid JSON", err)
	}
	if envelope.EventID == "" {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "event_id is required", nil)
	}
	span.SetAttributes(attribute.String("event.id", envelope.EventID), attribute.String("event.type", envelope.EventType))

	// Dedup before storing. Senders retry on timeouts, so a replay must be
	// acknowledged without any further side effect.
	existing, err := l.datasource.GetWebhookEventByEventID(ctx, envelope.EventID)
	if err != nil && !apierror.Is(err, apierror.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return &IngestResult{EventID: envelope.EventID, Message: "Event already processed", Duplicate: true}, nil
	}

	evt := &model.WebhookEvent{
		EventID:        envelope.EventID,
		ConnectionID:   conn.ConnectionID,
		AccountID:      conn.AccountID,
		EventType:      envelope.EventType,
		RawPayload:     req.RawBody,
		SignatureValid: true,
		ReceivedAt:     time.Now(),
	}

	_, err = l.datasource.RecordWebhookEvent(ctx, evt)
	if err != nil {
		if apierror.Is(err, apierror.ErrConflict) {
			// Lost a concurrent duplicate race; the winner owns processing.
			return &IngestResult{EventID: envelope.EventID, Message: "Event already processed", Duplicate: true}, nil
		}
		return nil, err
	}

	// The raw event is durable from here on. Normalization failures are
	// recorded and retried later, never surfaced to the sender.
	if err := l.normalizeEvent(ctx, conn, &envelope); err != nil {
		l.handleNormalizationFailure(ctx, span, envelope.EventID, err)
		l.postIngestActions(conn.ConnectionID, err)
		return &IngestResult{EventID: envelope.EventID, Message: "Event received"}, nil
	}

	if err := l.datasource.MarkWebhookEventProcessed(ctx, envelope.EventID, time.Now()); err != nil {
		logrus.Errorf("failed to mark event %s processed: %v", envelope.EventID, err)
	}
	l.postIngestActions(conn.ConnectionID, nil)

	return &IngestResult{EventID: envelope.EventID, Message: "Event processed"}, nil
}

// recordForensicFailure persists a signature-invalid delivery for later
// inspection. It is bookkeeping only, never a processed event, and its
// failure must not mask the authentication rejection.
func (l *Leadflow) recordForensicFailure(ctx context.Context, conn *model.Connection, rawBody []byte) {
	var envelope model.WebhookEnvelope
	_ = json.Unmarshal(rawBody, &envelope)

	eventID := envelope.EventID
	if eventID == "" {
		eventID = model.GenerateUUIDWithSuffix("evt-unsigned")
	}

	_, err := l.datasource.RecordWebhookEvent(ctx, &model.WebhookEvent{
		EventID:        eventID,
		ConnectionID:   conn.ConnectionID,
		AccountID:      conn.AccountID,
		EventType:      envelope.EventType,
		RawPayload:     rawBody,
		SignatureValid: false,
		Error:          "signature verification failed",
		ReceivedAt:     time.Now(),
	})
	if err != nil && !apierror.Is(err, apierror.ErrConflict) {
		logrus.Errorf("failed to record forensic webhook event: %v", err)
	}
}

func (l *Leadflow) handleNormalizationFailure(ctx context.Context, span trace.Span, eventID string, cause error) {
	span.RecordError(cause)
	logrus.Errorf("normalization failed for event %s: %v", eventID, cause)

	if err := l.datasource.MarkWebhookEventFailed(ctx, eventID, cause.Error()); err != nil {
		logrus.Errorf("failed to record failure for event %s: %v", eventID, err)
	}
	if l.queue != nil {
		if err := l.queue.queueEventRetry(ctx, eventID); err != nil {
			logrus.Errorf("failed to enqueue retry for event %s: %v", eventID, err)
		}
	}
}

// RetryEvent re-runs normalization for a stored, unprocessed event. The
// retry worker calls this with the event's idempotency key.
func (l *Leadflow) RetryEvent(ctx context.Context, eventID string) error {
	ctx, span := otel.Tracer("leadflow.ingestion").Start(ctx, "RetryEvent")
	defer span.End()

	evt, err := l.datasource.GetWebhookEventByEventID(ctx, eventID)
	if err != nil {
		return err
	}
	if evt.Processed {
		return nil
	}
	if !evt.SignatureValid {
		return apierror.NewAPIError(apierror.ErrForbidden, "Refusing to process event that failed signature verification", nil)
	}

	conn, err := l.datasource.GetConnectionByID(ctx, evt.ConnectionID)
	if err != nil {
		return err
	}

	var envelope model.WebhookEnvelope
	if err := json.Unmarshal(evt.RawPayload, &envelope); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Stored payload is not valid JSON", err)
	}

	if err := l.normalizeEvent(ctx, conn, &envelope); err != nil {
		if markErr := l.datasource.MarkWebhookEventFailed(ctx, eventID, err.Error()); markErr != nil {
			logrus.Errorf("failed to record retry failure for event %s: %v", eventID, markErr)
		}
		return err
	}

	return l.datasource.MarkWebhookEventProcessed(ctx, eventID, time.Now())
}
