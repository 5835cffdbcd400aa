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

	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"
)

func (d Datasource) CreateLead(ctx context.Context, lead model.Lead) (model.Lead, error) {
	lead.LeadID = model.GenerateUUIDWithSuffix("lead")
	lead.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO leads (lead_id, account_id, email, name, phone, source, utm_source, utm_medium, utm_campaign, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, lead.LeadID, lead.AccountID, lead.Email, lead.Name, lead.Phone, lead.Source, lead.UtmSource, lead.UtmMedium, lead.UtmCampaign, lead.CreatedAt)
	if err != nil {
		return model.Lead{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create lead", err)
	}

	return lead, nil
}

// UpsertOrder converges retried deliveries of the same source order on one
// row. A refunded order is never overwritten back to an earlier status.
func (d Datasource) UpsertOrder(ctx context.Context, order model.Order) (model.Order, error) {
	if order.OrderID == "" {
		order.OrderID = model.GenerateUUIDWithSuffix("ord")
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO orders (order_id, source_order_id, account_id, email, status, total, currency, utm_source, utm_medium, utm_campaign, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (account_id, source_order_id) DO UPDATE
		SET status = CASE WHEN orders.status = 'refunded' THEN orders.status ELSE EXCLUDED.status END,
		    total = EXCLUDED.total,
		    email = COALESCE(NULLIF(EXCLUDED.email, ''), orders.email),
		    updated_at = EXCLUDED.updated_at
		RETURNING order_id, created_at
	`, order.OrderID, order.SourceOrderID, order.AccountID, order.Email, order.Status, order.Total, order.Currency, order.UtmSource, order.UtmMedium, order.UtmCampaign, now).Scan(&order.OrderID, &order.CreatedAt)
	if err != nil {
		return model.Order{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert order", err)
	}

	return order, nil
}

func (d Datasource) MarkOrderRefunded(ctx context.Context, accountID, sourceOrderID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE orders
		SET status = 'refunded', updated_at = NOW()
		WHERE account_id = $1 AND source_order_id = $2
	`, accountID, sourceOrderID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark order refunded", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark order refunded", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Order not found", nil)
	}
	return nil
}

// RecordCheckoutEvent always inserts. Funnel steps are history, not state.
func (d Datasource) RecordCheckoutEvent(ctx context.Context, evt model.CheckoutEvent) (model.CheckoutEvent, error) {
	evt.CheckoutID = model.GenerateUUIDWithSuffix("chk")
	evt.CreatedAt = time.Now()
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = evt.CreatedAt
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO checkout_events (checkout_id, account_id, email, step, source_order_id, value, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, evt.CheckoutID, evt.AccountID, evt.Email, evt.Step, evt.SourceOrderID, evt.Value, evt.OccurredAt, evt.CreatedAt)
	if err != nil {
		return model.CheckoutEvent{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record checkout event", err)
	}

	return evt, nil
}
