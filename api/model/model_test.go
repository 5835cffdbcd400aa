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
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
)

func TestValidateCreateConnection(t *testing.T) {
	valid := CreateConnection{AccountId: gofakeit.UUID(), Name: gofakeit.Company()}
	assert.NoError(t, valid.ValidateCreateConnection())

	missingAccount := CreateConnection{Name: "shop"}
	assert.Error(t, missingAccount.ValidateCreateConnection())

	missingName := CreateConnection{AccountId: gofakeit.UUID()}
	assert.Error(t, missingName.ValidateCreateConnection())
}

func TestValidateAnalyzeAccount(t *testing.T) {
	valid := AnalyzeAccount{AccountId: gofakeit.UUID(), DatePreset: "last_30d"}
	assert.NoError(t, valid.ValidateAnalyzeAccount())

	empty := AnalyzeAccount{}
	assert.Error(t, empty.ValidateAnalyzeAccount())
}

func TestValidateExecuteBatch(t *testing.T) {
	rec := ExecuteRecommendation{Type: "pause_ad", EntityId: "ad_1", Reason: "fatigued"}

	valid := ExecuteBatch{AccountId: "acct_1", ApprovedBy: "ops@acme.io", Recommendations: []ExecuteRecommendation{rec}}
	assert.NoError(t, valid.ValidateExecuteBatch())

	noRecs := ExecuteBatch{AccountId: "acct_1", ApprovedBy: "ops@acme.io"}
	assert.Error(t, noRecs.ValidateExecuteBatch())

	noApprover := ExecuteBatch{AccountId: "acct_1", Recommendations: []ExecuteRecommendation{rec}}
	assert.Error(t, noApprover.ValidateExecuteBatch())

	badAction := valid
	badAction.Recommendations = []ExecuteRecommendation{{Type: "delete_campaign", EntityId: "cmp_1", Reason: "r"}}
	assert.Error(t, badAction.ValidateExecuteBatch())

	noReason := valid
	noReason.Recommendations = []ExecuteRecommendation{{Type: "pause_ad", EntityId: "ad_1"}}
	assert.Error(t, noReason.ValidateExecuteBatch())
}

func TestToExecuteRequest(t *testing.T) {
	batch := ExecuteBatch{
		AccountId:  "acct_1",
		ApprovedBy: "ops@acme.io",
		Recommendations: []ExecuteRecommendation{
			{
				Type:      "adjust_budget",
				AdSetId:   "as_1",
				Reason:    "scaling winner",
				RiskLevel: "medium",
				Params:    map[string]interface{}{"budget": 150},
			},
		},
	}

	req := batch.ToExecuteRequest()
	assert.Equal(t, "acct_1", req.AccountID)
	assert.Equal(t, "ops@acme.io", req.ApprovedBy)
	assert.Len(t, req.Recommendations, 1)
	assert.Equal(t, "adjust_budget", req.Recommendations[0].Type)
	assert.Equal(t, "as_1", req.Recommendations[0].AdSetID)
	assert.Equal(t, 150, req.Recommendations[0].Params["budget"])
}

func TestToConnection(t *testing.T) {
	c := CreateConnection{
		AccountId:   "acct_1",
		Name:        "storefront",
		EndpointUrl: "https://shop.example.com/webhooks",
		MetaData:    map[string]interface{}{"env": "prod"},
	}

	conn := c.ToConnection()
	assert.Equal(t, "acct_1", conn.AccountID)
	assert.Equal(t, "storefront", conn.Name)
	assert.Equal(t, "https://shop.example.com/webhooks", conn.EndpointURL)
	assert.Equal(t, "prod", conn.MetaData["env"])
}
