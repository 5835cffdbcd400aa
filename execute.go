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
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"
)

// ExecuteRequest is one approved batch of recommendations.
type ExecuteRequest struct {
	AccountID       string                 `json:"account_id"`
	ApprovedBy      string                 `json:"approved_by"`
	Recommendations []model.Recommendation `json:"recommendations"`
}

// ItemResult reports the outcome of one recommendation in a batch.
type ItemResult struct {
	ExecutionID string `json:"execution_id"`
	Type        string `json:"type"`
	EntityID    string `json:"entity_id,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// ExecuteResult summarizes a batch run. Success reports whether every item
// in the batch executed; individual outcomes are in Results.
type ExecuteResult struct {
	Success  bool         `json:"success"`
	BatchID  string       `json:"batch_id"`
	Executed int          `json:"executed"`
	Failed   int          `json:"failed"`
	Results  []ItemResult `json:"results"`
}

// ExecuteBatch applies an approved batch of recommendations against the ads
// platform. The whole batch is rejected up front when it is oversized or the
// synced data is stale; otherwise items run sequentially and every attempt
// leaves exactly one audit row, failures included. One item failing never
// stops the rest of the batch.
func (l *Leadflow) ExecuteBatch(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	ctx, span := otel.Tracer("leadflow.agent").Start(ctx, "ExecuteBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", req.AccountID),
		attribute.Int("batch.size", len(req.Recommendations)),
	)

	cfg, err := l.effectiveAgentConfig(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	if len(req.Recommendations) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "batch contains no recommendations", nil)
	}
	if len(req.Recommendations) > cfg.MaxRecsPerBatch {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("batch size %d exceeds maximum %d", len(req.Recommendations), cfg.MaxRecsPerBatch), nil)
	}

	freshness, err := l.dataFreshness(ctx, req.AccountID, cfg)
	if err != nil {
		return nil, err
	}
	if freshness != model.FreshnessFresh {
		return nil, apierror.NewAPIError(apierror.ErrPreconditionFailed,
			"synced data is stale; refusing to execute against an outdated view", nil)
	}

	batchID := model.GenerateUUIDWithSuffix("batch")
	result := &ExecuteResult{BatchID: batchID}

	for _, rec := range req.Recommendations {
		item := l.executeOne(ctx, req.AccountID, batchID, req.ApprovedBy, rec)
		result.Results = append(result.Results, item)
		if item.Status == model.ExecutionStatusExecuted {
			result.Executed++
		} else {
			result.Failed++
		}
	}

	result.Success = result.Failed == 0

	logrus.WithFields(logrus.Fields{
		"account_id": req.AccountID,
		"batch_id":   batchID,
		"executed":   result.Executed,
		"failed":     result.Failed,
	}).Info("agent batch completed")

	return result, nil
}

// executeOne validates, snapshots, dispatches and audits a single
// recommendation. The audit row is written whatever the outcome.
func (l *Leadflow) executeOne(ctx context.Context, accountID, batchID, approvedBy string, rec model.Recommendation) ItemResult {
	execution := &model.AgentExecution{
		AccountID:     accountID,
		ExecutionType: rec.Type,
		EntityID:      rec.EntityID,
		Reason:        rec.Reason,
		RiskLevel:     rec.RiskLevel,
		ApprovedBy:    approvedBy,
		Status:        model.ExecutionStatusExecuted,
		CreatedAt:     time.Now(),
	}

	if err := validateRecommendation(rec); err != nil {
		execution.Status = model.ExecutionStatusFailed
		execution.ExecutionError = err.Error()
		return l.auditAndReport(ctx, execution, rec)
	}

	before, err := l.captureBefore(ctx, batchID, rec)
	if err != nil {
		execution.Status = model.ExecutionStatusFailed
		execution.ExecutionError = fmt.Sprintf("before-state read failed: %v", err)
		return l.auditAndReport(ctx, execution, rec)
	}
	execution.BeforeState = before

	response, err := l.dispatch(ctx, rec)
	if err != nil {
		execution.Status = model.ExecutionStatusFailed
		execution.ExecutionError = err.Error()
		return l.auditAndReport(ctx, execution, rec)
	}

	execution.AfterState = l.captureAfter(ctx, batchID, rec, response)
	return l.auditAndReport(ctx, execution, rec)
}

// validateRecommendation enforces the action allow-list and per-action
// required fields before anything touches the platform.
func validateRecommendation(rec model.Recommendation) error {
	switch rec.Type {
	case model.ActionPauseAd:
		if rec.EntityID == "" {
			return fmt.Errorf("pause_ad requires entity_id")
		}
	case model.ActionPauseAdSet:
		if rec.AdSetID == "" && rec.EntityID == "" {
			return fmt.Errorf("pause_adset requires adset_id")
		}
	case model.ActionCreateAd:
		if rec.AdSetID == "" {
			return fmt.Errorf("create_ad requires adset_id")
		}
	case model.ActionAdjustBudget:
		if rec.AdSetID == "" && rec.EntityID == "" {
			return fmt.Errorf("adjust_budget requires adset_id")
		}
		if _, ok := rec.Params["budget"]; !ok {
			return fmt.Errorf("adjust_budget requires params.budget")
		}
	default:
		return fmt.Errorf("action %q is not allowed", rec.Type)
	}
	return nil
}

func targetAdSet(rec model.Recommendation) string {
	if rec.AdSetID != "" {
		return rec.AdSetID
	}
	return rec.EntityID
}

// captureBefore reads the target's current remote state. create_ad has no
// pre-existing ad to read, so its before snapshot is the parent ad set.
func (l *Leadflow) captureBefore(ctx context.Context, batchID string, rec model.Recommendation) (*model.StateSnapshot, error) {
	var state map[string]interface{}
	var err error

	switch rec.Type {
	case model.ActionPauseAd:
		state, err = l.ads.GetEntity(ctx, "ad", rec.EntityID)
	case model.ActionPauseAdSet, model.ActionAdjustBudget, model.ActionCreateAd:
		state, err = l.ads.GetEntity(ctx, "adset", targetAdSet(rec))
	}
	if err != nil {
		return nil, err
	}
	return &model.StateSnapshot{BatchID: batchID, CapturedAt: time.Now(), State: state}, nil
}

func (l *Leadflow) dispatch(ctx context.Context, rec model.Recommendation) (map[string]interface{}, error) {
	switch rec.Type {
	case model.ActionPauseAd:
		return l.ads.PauseEntity(ctx, "ad", rec.EntityID)
	case model.ActionPauseAdSet:
		return l.ads.PauseEntity(ctx, "adset", targetAdSet(rec))
	case model.ActionCreateAd:
		return l.ads.CreateAd(ctx, rec.AdSetID, rec.Params)
	case model.ActionAdjustBudget:
		return l.ads.AdjustBudget(ctx, targetAdSet(rec), rec.Params)
	}
	return nil, fmt.Errorf("action %q is not allowed", rec.Type)
}

// captureAfter re-reads the mutated entity. When the follow-up read fails or
// does not apply, the action's own response stands in as the after state.
func (l *Leadflow) captureAfter(ctx context.Context, batchID string, rec model.Recommendation, response map[string]interface{}) *model.StateSnapshot {
	var state map[string]interface{}
	var err error

	switch rec.Type {
	case model.ActionPauseAd:
		state, err = l.ads.GetEntity(ctx, "ad", rec.EntityID)
	case model.ActionPauseAdSet, model.ActionAdjustBudget:
		state, err = l.ads.GetEntity(ctx, "adset", targetAdSet(rec))
	default:
		state, err = nil, fmt.Errorf("no follow-up read")
	}
	if err != nil || state == nil {
		state = response
	}
	return &model.StateSnapshot{BatchID: batchID, CapturedAt: time.Now(), State: state}
}

func (l *Leadflow) auditAndReport(ctx context.Context, execution *model.AgentExecution, rec model.Recommendation) ItemResult {
	if _, err := l.datasource.RecordAgentExecution(ctx, execution); err != nil {
		logrus.WithFields(logrus.Fields{
			"execution_id": execution.ExecutionID,
			"account_id":   execution.AccountID,
		}).WithError(err).Error("failed to record agent execution")
	}
	return ItemResult{
		ExecutionID: execution.ExecutionID,
		Type:        rec.Type,
		EntityID:    rec.EntityID,
		Status:      execution.Status,
		Error:       execution.ExecutionError,
	}
}

// GetExecutions pages through the audit trail for one account.
func (l *Leadflow) GetExecutions(ctx context.Context, accountID string, limit, offset int) ([]model.AgentExecution, error) {
	ctx, span := otel.Tracer("leadflow.agent").Start(ctx, "GetExecutions")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	return l.datasource.GetAgentExecutions(ctx, accountID, limit, offset)
}
