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

	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"
)

// UpsertContact folds one delta into the lifetime contact record for
// (accountID, email). Counters accumulate monotonically; the store is the
// arbitration point for concurrent deltas.
func (l *Leadflow) UpsertContact(ctx context.Context, accountID, email string, delta model.ContactDelta) (*model.Contact, error) {
	if email == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Contact email is required", nil)
	}
	return l.datasource.UpsertContact(ctx, accountID, normalizeEmail(email), delta)
}

func (l *Leadflow) GetContact(ctx context.Context, accountID, email string) (*model.Contact, error) {
	return l.datasource.GetContact(ctx, accountID, normalizeEmail(email))
}
