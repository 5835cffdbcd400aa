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

package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	model2 "github.com/leadflowhq/leadflow/api/model"
)

func TestAnalyzeAccountEndpoint(t *testing.T) {
	router, mock := setupRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM agent_configs").
		WithArgs("acct_1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM sync_status").
		WithArgs("acct_1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM ad_sets").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"adset_id", "campaign_id", "account_id", "name", "status"}))
	mock.ExpectQuery("SELECT (.+) FROM ads").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"ad_id", "adset_id", "account_id", "name", "status", "launched_at"}))
	mock.ExpectQuery("SELECT (.+) FROM ad_insights").
		WithArgs("acct_1", "last_7d").
		WillReturnRows(sqlmock.NewRows([]string{"ad_id", "spend", "leads", "clicks", "impressions", "frequency"}))

	body, _ := json.Marshal(model2.AnalyzeAccount{AccountId: "acct_1"})

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  bytes.NewReader(body),
		Router:   router,
		Method:   http.MethodPost,
		Route:    "/agent/analyze",
		Response: &response,
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "stale", response["data_freshness"])

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAnalyzeAccountValidation(t *testing.T) {
	router, _ := setupRouter(t)

	body, _ := json.Marshal(model2.AnalyzeAccount{})

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  bytes.NewReader(body),
		Router:   router,
		Method:   http.MethodPost,
		Route:    "/agent/analyze",
		Response: &response,
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestExecuteBatchEndpointStaleSync(t *testing.T) {
	router, mock := setupRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM agent_configs").
		WithArgs("acct_1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM sync_status").
		WithArgs("acct_1").
		WillReturnError(sql.ErrNoRows)

	body, _ := json.Marshal(model2.ExecuteBatch{
		AccountId:  "acct_1",
		ApprovedBy: "ops@acme.io",
		Recommendations: []model2.ExecuteRecommendation{
			{Type: "pause_ad", EntityId: "ad_1", Reason: "fatigued"},
		},
	})

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  bytes.NewReader(body),
		Router:   router,
		Method:   http.MethodPost,
		Route:    "/agent/execute",
		Response: &response,
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, resp.Code)
	assert.Contains(t, response["error"], "stale")
	assert.Equal(t, "stale", response["data_freshness"])

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestExecuteBatchEndpointValidation(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name    string
		payload model2.ExecuteBatch
	}{
		{
			name: "missing recommendations",
			payload: model2.ExecuteBatch{
				AccountId:  "acct_1",
				ApprovedBy: "ops@acme.io",
			},
		},
		{
			name: "missing approver",
			payload: model2.ExecuteBatch{
				AccountId: "acct_1",
				Recommendations: []model2.ExecuteRecommendation{
					{Type: "pause_ad", EntityId: "ad_1", Reason: "r"},
				},
			},
		},
		{
			name: "disallowed action",
			payload: model2.ExecuteBatch{
				AccountId:  "acct_1",
				ApprovedBy: "ops@acme.io",
				Recommendations: []model2.ExecuteRecommendation{
					{Type: "delete_campaign", EntityId: "cmp_1", Reason: "r"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.payload)

			var response map[string]interface{}
			resp, err := SetUpTestRequest(TestRequest{
				Payload:  bytes.NewReader(body),
				Router:   router,
				Method:   http.MethodPost,
				Route:    "/agent/execute",
				Response: &response,
			})
			assert.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
		})
	}
}

func TestGetExecutionsEndpoint(t *testing.T) {
	router, mock := setupRouter(t)

	rows := sqlmock.NewRows([]string{"execution_id", "account_id", "execution_type", "entity_id", "before_state", "after_state", "reason", "risk_level", "approved_by", "status", "execution_error", "created_at"}).
		AddRow("exe_1", "acct_1", "pause_ad", "ad_1", nil, nil, "fatigued", "medium", "ops@acme.io", "executed", nil, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM agent_executions").
		WithArgs("acct_1", 10, 0).
		WillReturnRows(rows)

	var response []map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Method:   http.MethodGet,
		Route:    "/agent/executions?account_id=acct_1&limit=10",
		Response: &response,
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, response, 1)
	assert.Equal(t, "exe_1", response[0]["execution_id"])

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestGetExecutionsRequiresAccountID(t *testing.T) {
	router, _ := setupRouter(t)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Method:   http.MethodGet,
		Route:    "/agent/executions",
		Response: &response,
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
