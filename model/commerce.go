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
	"time"

	"github.com/shopspring/decimal"
)

// Order status values.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCompleted = "completed"
	OrderStatusRefunded  = "refunded"
)

// Contact type values.
const (
	ContactTypeLead     = "lead"
	ContactTypeCustomer = "customer"
)

// Lead is one captured lead submission.
type Lead struct {
	ID          int64     `json:"-"`
	LeadID      string    `json:"lead_id"`
	AccountID   string    `json:"account_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Source      string    `json:"source,omitempty"`
	UtmSource   string    `json:"utm_source,omitempty"`
	UtmMedium   string    `json:"utm_medium,omitempty"`
	UtmCampaign string    `json:"utm_campaign,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Order is upserted by SourceOrderID, so retried deliveries of the same
// order converge on one row.
type Order struct {
	ID            int64           `json:"-"`
	OrderID       string          `json:"order_id"`
	SourceOrderID string          `json:"source_order_id"`
	AccountID     string          `json:"account_id"`
	Email         string          `json:"email"`
	Status        string          `json:"status"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	UtmSource     string          `json:"utm_source,omitempty"`
	UtmMedium     string          `json:"utm_medium,omitempty"`
	UtmCampaign   string          `json:"utm_campaign,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CheckoutEvent rows are append-only funnel history, never updated.
type CheckoutEvent struct {
	ID            int64           `json:"-"`
	CheckoutID    string          `json:"checkout_id"`
	AccountID     string          `json:"account_id"`
	Email         string          `json:"email,omitempty"`
	Step          string          `json:"step"`
	SourceOrderID string          `json:"source_order_id,omitempty"`
	Value         decimal.Decimal `json:"value"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Contact is the single lifetime record per (account, email). Counters only
// ever grow.
type Contact struct {
	ID          int64           `json:"-"`
	ContactID   string          `json:"contact_id"`
	AccountID   string          `json:"account_id"`
	Email       string          `json:"email"`
	Name        string          `json:"name,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	ContactType string          `json:"contact_type"`
	Source      string          `json:"source,omitempty"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	TotalOrders int64           `json:"total_orders"`
	LeadCount   int64           `json:"lead_count"`
	FirstSeen   time.Time       `json:"first_seen"`
	LastSeen    time.Time       `json:"last_seen"`
}

// ContactDelta is one incremental contribution to a contact. Identity fields
// override when non-empty; counters accumulate and must be non-negative.
type ContactDelta struct {
	Name        string
	Phone       string
	ContactType string
	Source      string
	SpendDelta  decimal.Decimal
	OrderDelta  int64
	LeadDelta   int64
}
