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
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/leadflowhq/leadflow/model"
)

func (c *CreateConnection) ValidateCreateConnection() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AccountId, validation.Required),
		validation.Field(&c.Name, validation.Required),
	)
}

func (a *AnalyzeAccount) ValidateAnalyzeAccount() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.AccountId, validation.Required),
	)
}

func (e *ExecuteBatch) ValidateExecuteBatch() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.AccountId, validation.Required),
		validation.Field(&e.ApprovedBy, validation.Required),
		validation.Field(&e.Recommendations, validation.Required, validation.By(func(value interface{}) error {
			recs, ok := value.([]ExecuteRecommendation)
			if !ok {
				return errors.New("invalid recommendations type")
			}
			for _, r := range recs {
				if err := r.validate(); err != nil {
					return err
				}
			}
			return nil
		})),
	)
}

func (r ExecuteRecommendation) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required, validation.In(
			model.ActionPauseAd, model.ActionPauseAdSet, model.ActionCreateAd, model.ActionAdjustBudget)),
		validation.Field(&r.Reason, validation.Required),
	)
}
