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
	"encoding/json"
	"time"

	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"
	"github.com/shopspring/decimal"
)

func (d Datasource) GetAgentConfig(ctx context.Context, accountID string) (*model.AgentConfig, error) {
	cfg := model.AgentConfig{}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT account_id, fatigue_frequency, high_spend_threshold, recent_launch_days, max_recs_per_batch, min_spend, min_impressions, max_data_age_hours, created_at
		FROM agent_configs
		WHERE account_id = $1
	`, accountID)

	err := row.Scan(&cfg.AccountID, &cfg.FatigueFrequency, &cfg.HighSpendThreshold, &cfg.RecentLaunchDays, &cfg.MaxRecsPerBatch, &cfg.MinSpend, &cfg.MinImpressions, &cfg.MaxDataAgeHours, &cfg.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Agent config not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve agent config", err)
	}

	return &cfg, nil
}

func (d Datasource) GetSyncStatus(ctx context.Context, accountID string) (*model.SyncStatus, error) {
	status := model.SyncStatus{}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT account_id, last_synced_at, status
		FROM sync_status
		WHERE account_id = $1
	`, accountID)

	err := row.Scan(&status.AccountID, &status.LastSyncedAt, &status.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "No sync recorded for account", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve sync status", err)
	}

	return &status, nil
}

func (d Datasource) GetAdSets(ctx context.Context, accountID string) ([]model.AdSet, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT adset_id, campaign_id, account_id, name, status
		FROM ad_sets
		WHERE account_id = $1
	`, accountID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ad sets", err)
	}
	defer rows.Close()

	adSets := []model.AdSet{}
	for rows.Next() {
		as := model.AdSet{}
		if err := rows.Scan(&as.AdSetID, &as.CampaignID, &as.AccountID, &as.Name, &as.Status); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ad set data", err)
		}
		adSets = append(adSets, as)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ad sets", err)
	}

	return adSets, nil
}

func (d Datasource) GetAds(ctx context.Context, accountID string) ([]model.Ad, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT ad_id, adset_id, account_id, name, status, launched_at
		FROM ads
		WHERE account_id = $1
	`, accountID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ads", err)
	}
	defer rows.Close()

	ads := []model.Ad{}
	for rows.Next() {
		ad := model.Ad{}
		var launchedAt sql.NullTime
		if err := rows.Scan(&ad.AdID, &ad.AdSetID, &ad.AccountID, &ad.Name, &ad.Status, &launchedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ad data", err)
		}
		if launchedAt.Valid {
			ad.LaunchedAt = launchedAt.Time
		}
		ads = append(ads, ad)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ads", err)
	}

	return ads, nil
}

func (d Datasource) GetAdInsights(ctx context.Context, accountID, datePreset string) ([]model.AdInsight, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT ad_id, spend, leads, clicks, impressions, frequency
		FROM ad_insights
		WHERE account_id = $1 AND date_preset = $2
	`, accountID, datePreset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ad insights", err)
	}
	defer rows.Close()

	insights := []model.AdInsight{}
	for rows.Next() {
		in := model.AdInsight{}
		var spend string
		if err := rows.Scan(&in.AdID, &spend, &in.Leads, &in.Clicks, &in.Impressions, &in.Frequency); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ad insight data", err)
		}
		in.Spend, err = decimal.NewFromString(spend)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to parse ad spend", err)
		}
		insights = append(insights, in)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ad insights", err)
	}

	return insights, nil
}

// RecordAgentExecution writes one audit row. Callers invoke it exactly once
// per attempted recommendation, whatever the outcome.
func (d Datasource) RecordAgentExecution(ctx context.Context, exec *model.AgentExecution) (*model.AgentExecution, error) {
	exec.ExecutionID = model.GenerateUUIDWithSuffix("exe")
	exec.CreatedAt = time.Now()

	beforeJSON, err := marshalSnapshot(exec.BeforeState)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal before state", err)
	}
	afterJSON, err := marshalSnapshot(exec.AfterState)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal after state", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO agent_executions (execution_id, account_id, execution_type, entity_id, before_state, after_state, reason, risk_level, approved_by, status, execution_error, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12)
	`, exec.ExecutionID, exec.AccountID, exec.ExecutionType, exec.EntityID, beforeJSON, afterJSON, exec.Reason, exec.RiskLevel, exec.ApprovedBy, exec.Status, exec.ExecutionError, exec.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record agent execution", err)
	}

	return exec, nil
}

func (d Datasource) GetAgentExecutions(ctx context.Context, accountID string, limit, offset int) ([]model.AgentExecution, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT execution_id, account_id, execution_type, entity_id, before_state, after_state, reason, risk_level, approved_by, status, execution_error, created_at
		FROM agent_executions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve agent executions", err)
	}
	defer rows.Close()

	executions := []model.AgentExecution{}
	for rows.Next() {
		exec := model.AgentExecution{}
		var entityID, executionError sql.NullString
		var beforeJSON, afterJSON []byte
		err = rows.Scan(&exec.ExecutionID, &exec.AccountID, &exec.ExecutionType, &entityID, &beforeJSON, &afterJSON, &exec.Reason, &exec.RiskLevel, &exec.ApprovedBy, &exec.Status, &executionError, &exec.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan agent execution data", err)
		}

		exec.EntityID = entityID.String
		exec.ExecutionError = executionError.String
		exec.BeforeState, err = unmarshalSnapshot(beforeJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal before state", err)
		}
		exec.AfterState, err = unmarshalSnapshot(afterJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal after state", err)
		}

		executions = append(executions, exec)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over agent executions", err)
	}

	return executions, nil
}

func marshalSnapshot(s *model.StateSnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func unmarshalSnapshot(data []byte) (*model.StateSnapshot, error) {
	if len(data) == 0 {
		return nil, nil
	}
	s := model.StateSnapshot{}
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
