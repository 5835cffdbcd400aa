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
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"
)

// leadPayload is the data object of lead.* events.
type leadPayload struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Source      string `json:"source"`
	UtmSource   string `json:"utm_source"`
	UtmMedium   string `json:"utm_medium"`
	UtmCampaign string `json:"utm_campaign"`
}

// orderPayload is the data object of order.* events.
type orderPayload struct {
	OrderID     string          `json:"order_id"`
	Email       string          `json:"email"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	UtmSource   string          `json:"utm_source"`
	UtmMedium   string          `json:"utm_medium"`
	UtmCampaign string          `json:"utm_campaign"`
}

// checkoutPayload is the data object of checkout.* events.
type checkoutPayload struct {
	Email   string          `json:"email"`
	OrderID string          `json:"order_id"`
	Value   decimal.Decimal `json:"value"`
}

// normalizeEvent maps a typed payload into domain entities. Unrecognized
// event types are logged and acknowledged, not treated as errors.
func (l *Leadflow) normalizeEvent(ctx context.Context, conn *model.Connection, envelope *model.WebhookEnvelope) error {
	switch envelope.EventType {
	case model.EventLeadCreated:
		return l.normalizeLead(ctx, conn, envelope)
	case model.EventOrderCreated:
		return l.normalizeOrder(ctx, conn, envelope, model.OrderStatusPending)
	case model.EventOrderPaid:
		return l.normalizeOrder(ctx, conn, envelope, model.OrderStatusPaid)
	case model.EventOrderCompleted:
		return l.normalizeOrder(ctx, conn, envelope, model.OrderStatusCompleted)
	case model.EventOrderRefunded:
		return l.normalizeRefund(ctx, conn, envelope)
	case model.EventCheckoutStarted, model.EventCheckoutAbandoned, model.EventCheckoutCompleted:
		return l.normalizeCheckout(ctx, conn, envelope)
	default:
		logrus.Warnf("unrecognized event type %q for event %s, acknowledging without normalization", envelope.EventType, envelope.EventID)
		return nil
	}
}

func (l *Leadflow) normalizeLead(ctx context.Context, conn *model.Connection, envelope *model.WebhookEnvelope) error {
	var payload leadPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid lead payload", err)
	}
	if payload.Email == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Lead payload is missing email", nil)
	}

	_, err := l.datasource.CreateLead(ctx, model.Lead{
		AccountID:   conn.AccountID,
		Email:       normalizeEmail(payload.Email),
		Name:        payload.Name,
		Phone:       payload.Phone,
		Source:      payload.Source,
		UtmSource:   payload.UtmSource,
		UtmMedium:   payload.UtmMedium,
		UtmCampaign: payload.UtmCampaign,
	})
	if err != nil {
		return err
	}

	_, err = l.datasource.UpsertContact(ctx, conn.AccountID, normalizeEmail(payload.Email), model.ContactDelta{
		Name:        payload.Name,
		Phone:       payload.Phone,
		ContactType: model.ContactTypeLead,
		Source:      payload.Source,
		LeadDelta:   1,
	})
	return err
}

func (l *Leadflow) normalizeOrder(ctx context.Context, conn *model.Connection, envelope *model.WebhookEnvelope, status string) error {
	var payload orderPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid order payload", err)
	}
	if payload.OrderID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Order payload is missing order_id", nil)
	}

	_, err := l.datasource.UpsertOrder(ctx, model.Order{
		SourceOrderID: payload.OrderID,
		AccountID:     conn.AccountID,
		Email:         normalizeEmail(payload.Email),
		Status:        status,
		Total:         payload.Total,
		Currency:      payload.Currency,
		UtmSource:     payload.UtmSource,
		UtmMedium:     payload.UtmMedium,
		UtmCampaign:   payload.UtmCampaign,
	})
	if err != nil {
		return err
	}

	// Only a payment moves money onto the contact; created/completed events
	// for the same order must not double count.
	if status == model.OrderStatusPaid && payload.Email != "" {
		_, err = l.datasource.UpsertContact(ctx, conn.AccountID, normalizeEmail(payload.Email), model.ContactDelta{
			ContactType: model.ContactTypeCustomer,
			Source:      payload.UtmSource,
			SpendDelta:  payload.Total,
			OrderDelta:  1,
		})
	}
	return err
}

func (l *Leadflow) normalizeRefund(ctx context.Context, conn *model.Connection, envelope *model.WebhookEnvelope) error {
	var payload orderPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid refund payload", err)
	}
	if payload.OrderID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Refund payload is missing order_id", nil)
	}
	return l.datasource.MarkOrderRefunded(ctx, conn.AccountID, payload.OrderID)
}

func (l *Leadflow) normalizeCheckout(ctx context.Context, conn *model.Connection, envelope *model.WebhookEnvelope) error {
	var payload checkoutPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid checkout payload", err)
	}

	step := strings.TrimPrefix(envelope.EventType, "checkout.")
	_, err := l.datasource.RecordCheckoutEvent(ctx, model.CheckoutEvent{
		AccountID:     conn.AccountID,
		Email:         normalizeEmail(payload.Email),
		Step:          step,
		SourceOrderID: payload.OrderID,
		Value:         payload.Value,
	})
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
