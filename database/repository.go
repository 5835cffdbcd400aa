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
	"time"

	"github.com/leadflowhq/leadflow/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	connection // Connection registry operations
	event      // Webhook event operations
	commerce   // Lead, order and checkout operations
	contact    // Contact aggregation operations
	agent      // Agent config, snapshot and audit operations
}

// connection defines methods for the connection registry.
type connection interface {
	CreateConnection(ctx context.Context, conn model.Connection) (model.Connection, error)
	GetConnectionByID(ctx context.Context, id string) (*model.Connection, error)
	GetConnectionByExternalID(ctx context.Context, externalID string) (*model.Connection, error)
	UpdateConnectionSecrets(ctx context.Context, connectionID, currentSecret, previousSecret string, rotatedAt time.Time) error
	ClearExpiredPreviousSecrets(ctx context.Context, cutoff time.Time) (int64, error) // Best-effort grace-window sweep
	TouchConnectionSeen(ctx context.Context, connectionID string, at time.Time) error
	RecordConnectionError(ctx context.Context, connectionID, message string, at time.Time) error
}

// event defines methods for the durable webhook event log.
type event interface {
	RecordWebhookEvent(ctx context.Context, evt *model.WebhookEvent) (*model.WebhookEvent, error) // Conflict on duplicate event_id
	GetWebhookEventByEventID(ctx context.Context, eventID string) (*model.WebhookEvent, error)
	MarkWebhookEventProcessed(ctx context.Context, eventID string, at time.Time) error
	MarkWebhookEventFailed(ctx context.Context, eventID, processingError string) error // Records error and bumps retry_count
	GetUnprocessedWebhookEvents(ctx context.Context, limit int) ([]model.WebhookEvent, error)
}

// commerce defines methods for normalized domain entities.
type commerce interface {
	CreateLead(ctx context.Context, lead model.Lead) (model.Lead, error)
	UpsertOrder(ctx context.Context, order model.Order) (model.Order, error) // Idempotent on (account_id, source_order_id)
	MarkOrderRefunded(ctx context.Context, accountID, sourceOrderID string) error
	RecordCheckoutEvent(ctx context.Context, evt model.CheckoutEvent) (model.CheckoutEvent, error) // Append-only
}

// contact defines methods for the contact aggregator.
type contact interface {
	UpsertContact(ctx context.Context, accountID, email string, delta model.ContactDelta) (*model.Contact, error)
	GetContact(ctx context.Context, accountID, email string) (*model.Contact, error)
}

// agent defines methods for the optimization agent.
type agent interface {
	GetAgentConfig(ctx context.Context, accountID string) (*model.AgentConfig, error)
	GetSyncStatus(ctx context.Context, accountID string) (*model.SyncStatus, error)
	GetAdSets(ctx context.Context, accountID string) ([]model.AdSet, error)
	GetAds(ctx context.Context, accountID string) ([]model.Ad, error)
	GetAdInsights(ctx context.Context, accountID, datePreset string) ([]model.AdInsight, error)
	RecordAgentExecution(ctx context.Context, exec *model.AgentExecution) (*model.AgentExecution, error)
	GetAgentExecutions(ctx context.Context, accountID string, limit, offset int) ([]model.AgentExecution, error)
}
