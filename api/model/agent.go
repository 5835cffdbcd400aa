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
	leadflow "github.com/leadflowhq/leadflow"
	"github.com/leadflowhq/leadflow/model"
)

type AnalyzeAccount struct {
	AccountId  string `json:"account_id"`
	DatePreset string `json:"date_preset"`
}

type ExecuteRecommendation struct {
	Type       string                 `json:"type"`
	EntityId   string                 `json:"entity_id"`
	EntityName string                 `json:"entity_name"`
	AdSetId    string                 `json:"adset_id"`
	Reason     string                 `json:"reason"`
	RiskLevel  string                 `json:"risk_level"`
	Params     map[string]interface{} `json:"params"`
}

type ExecuteBatch struct {
	AccountId       string                  `json:"account_id"`
	ApprovedBy      string                  `json:"approved_by"`
	Recommendations []ExecuteRecommendation `json:"recommendations"`
}

func (e *ExecuteBatch) ToExecuteRequest() leadflow.ExecuteRequest {
	recs := make([]model.Recommendation, 0, len(e.Recommendations))
	for _, r := range e.Recommendations {
		recs = append(recs, model.Recommendation{
			Type:       r.Type,
			EntityID:   r.EntityId,
			EntityName: r.EntityName,
			AdSetID:    r.AdSetId,
			Reason:     r.Reason,
			RiskLevel:  r.RiskLevel,
			Params:     r.Params,
		})
	}
	return leadflow.ExecuteRequest{
		AccountID:       e.AccountId,
		ApprovedBy:      e.ApprovedBy,
		Recommendations: recs,
	}
}
