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

package model

import (
	"encoding/json"
	"time"
)

// Event types delivered by the connected platform.
const (
	EventLeadCreated       = "lead.created"
	EventOrderCreated      = "order.created"
	EventOrderPaid         = "order.paid"
	EventOrderCompleted    = "order.completed"
	EventOrderRefunded     = "order.refunded"
	EventCheckoutStarted   = "checkout.started"
	EventCheckoutAbandoned = "checkout.abandoned"
	EventCheckoutCompleted = "checkout.completed"
)

// WebhookEvent is the durable record of one inbound delivery. EventID is the
// sender-supplied idempotency key; RawPayload holds the exact bytes received,
// never a re-serialized form.
type WebhookEvent struct {
	ID             int64      `json:"-"`
	EventID        string     `json:"event_id"`
	ConnectionID   string     `json:"connection_id"`
	AccountID      string     `json:"account_id"`
	EventType      string     `json:"event_type"`
	RawPayload     []byte     `json:"-"`
	SignatureValid bool       `json:"signature_valid"`
	Processed      bool       `json:"processed"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	Error          string     `json:"error,omitempty"`
	RetryCount     int        `json:"retry_count"`
	ReceivedAt     time.Time  `json:"received_at"`
}

// WebhookEnvelope is the parsed wire shape of an inbound payload.
type WebhookEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}
