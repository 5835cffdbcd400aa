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
	"github.com/shopspring/decimal"
)

// UpsertContact folds one delta into the lifetime contact record as a single
// statement, so the store arbitrates concurrent deltas for the same
// (account, email). Identity fields override only when the delta carries
// them; counters accumulate and never decrease.
func (d Datasource) UpsertContact(ctx context.Context, accountID, email string, delta model.ContactDelta) (*model.Contact, error) {
	if delta.SpendDelta.IsNegative() || delta.OrderDelta < 0 || delta.LeadDelta < 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Contact counters cannot decrease", nil)
	}

	now := time.Now()
	contactID := model.GenerateUUIDWithSuffix("cnt")

	contact := model.Contact{AccountID: accountID, Email: email}
	var name, phone, contactType, source sql.NullString
	var totalSpent string

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO contacts (contact_id, account_id, email, name, phone, contact_type, source, total_spent, total_orders, lead_count, first_seen, last_seen)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $11)
		ON CONFLICT (account_id, email) DO UPDATE
		SET name = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name),
		    phone = COALESCE(NULLIF(EXCLUDED.phone, ''), contacts.phone),
		    contact_type = COALESCE(NULLIF(EXCLUDED.contact_type, ''), contacts.contact_type),
		    source = COALESCE(NULLIF(EXCLUDED.source, ''), contacts.source),
		    total_spent = contacts.total_spent + EXCLUDED.total_spent,
		    total_orders = contacts.total_orders + EXCLUDED.total_orders,
		    lead_count = contacts.lead_count + EXCLUDED.lead_count,
		    last_seen = EXCLUDED.last_seen
		RETURNING contact_id, name, phone, contact_type, source, total_spent, total_orders, lead_count, first_seen, last_seen
	`, contactID, accountID, email, delta.Name, delta.Phone, delta.ContactType, delta.Source, delta.SpendDelta, delta.OrderDelta, delta.LeadDelta, now).Scan(
		&contact.ContactID, &name, &phone, &contactType, &source, &totalSpent, &contact.TotalOrders, &contact.LeadCount, &contact.FirstSeen, &contact.LastSeen)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert contact", err)
	}

	contact.Name = name.String
	contact.Phone = phone.String
	contact.ContactType = contactType.String
	contact.Source = source.String
	contact.TotalSpent, err = decimal.NewFromString(totalSpent)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to parse contact total spent", err)
	}

	return &contact, nil
}

func (d Datasource) GetContact(ctx context.Context, accountID, email string) (*model.Contact, error) {
	contact := model.Contact{}
	var name, phone, contactType, source sql.NullString
	var totalSpent string

	row := d.Conn.QueryRowContext(ctx, `
		SELECT contact_id, account_id, email, name, phone, contact_type, source, total_spent, total_orders, lead_count, first_seen, last_seen
		FROM contacts
		WHERE account_id = $1 AND email = $2
	`, accountID, email)

	err := row.Scan(&contact.ContactID, &contact.AccountID, &contact.Email, &name, &phone, &contactType, &source, &totalSpent, &contact.TotalOrders, &contact.LeadCount, &contact.FirstSeen, &contact.LastSeen)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Contact not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve contact", err)
	}

	contact.Name = name.String
	contact.Phone = phone.String
	contact.ContactType = contactType.String
	contact.Source = source.String
	contact.TotalSpent, err = decimal.NewFromString(totalSpent)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to parse contact total spent", err)
	}

	return &contact, nil
}
