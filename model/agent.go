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

// Recommendation action types allowed through the execution orchestrator.
const (
	ActionPauseAd      = "pause_ad"
	ActionPauseAdSet   = "pause_adset"
	ActionCreateAd     = "create_ad"
	ActionAdjustBudget = "adjust_budget"
)

// Risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Execution status values.
const (
	ExecutionStatusExecuted = "executed"
	ExecutionStatusFailed   = "failed"
)

// Data freshness values reported to operators.
const (
	FreshnessFresh = "fresh"
	FreshnessStale = "stale"
)

// AgentConfig is the per-account override of the agent thresholds. Zero
// values fall back to the configured defaults.
type AgentConfig struct {
	ID                 int64     `json:"-"`
	AccountID          string    `json:"account_id"`
	FatigueFrequency   float64   `json:"fatigue_frequency"`
	HighSpendThreshold float64   `json:"high_spend_threshold"`
	RecentLaunchDays   int       `json:"recent_launch_days"`
	MaxRecsPerBatch    int       `json:"max_recs_per_batch"`
	MinSpend           float64   `json:"min_spend"`
	MinImpressions     int64     `json:"min_impressions"`
	MaxDataAgeHours    int       `json:"max_data_age_hours"`
	CreatedAt          time.Time `json:"created_at"`
}

// Recommendation is one proposed action against the ads platform.
// Actionable is false for monitor-only diagnostics.
type Recommendation struct {
	Type       string                 `json:"type"`
	EntityID   string                 `json:"entity_id,omitempty"`
	EntityName string                 `json:"entity_name,omitempty"`
	AdSetID    string                 `json:"adset_id,omitempty"`
	Reason     string                 `json:"reason"`
	RiskLevel  string                 `json:"risk_level"`
	Actionable bool                   `json:"actionable"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// StateSnapshot captures an entity's remote state at a point in time, tagged
// with the batch that observed it.
type StateSnapshot struct {
	BatchID    string                 `json:"batch_id"`
	CapturedAt time.Time              `json:"captured_at"`
	State      map[string]interface{} `json:"state"`
}

// AgentExecution is the audit record: exactly one row per attempted
// recommendation, whatever the outcome.
type AgentExecution struct {
	ID             int64          `json:"-"`
	ExecutionID    string         `json:"execution_id"`
	AccountID      string         `json:"account_id"`
	ExecutionType  string         `json:"execution_type"`
	EntityID       string         `json:"entity_id,omitempty"`
	BeforeState    *StateSnapshot `json:"before_state,omitempty"`
	AfterState     *StateSnapshot `json:"after_state,omitempty"`
	Reason         string         `json:"reason"`
	RiskLevel      string         `json:"risk_level"`
	ApprovedBy     string         `json:"approved_by"`
	Status         string         `json:"status"`
	ExecutionError string         `json:"execution_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SyncStatus is written by the external sync process and read here to gate
// batch execution on data freshness.
type SyncStatus struct {
	AccountID    string    `json:"account_id"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	Status       string    `json:"status"`
}

// Campaign, AdSet and Ad are read-side snapshots maintained by the external
// sync process. This service only reads them.
type Campaign struct {
	CampaignID string `json:"campaign_id"`
	AccountID  string `json:"account_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
}

type AdSet struct {
	AdSetID    string `json:"adset_id"`
	CampaignID string `json:"campaign_id"`
	AccountID  string `json:"account_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
}

type Ad struct {
	AdID       string    `json:"ad_id"`
	AdSetID    string    `json:"adset_id"`
	AccountID  string    `json:"account_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	LaunchedAt time.Time `json:"launched_at"`
}

// AdInsight aggregates one ad's performance over the analysis window.
type AdInsight struct {
	AdID        string          `json:"ad_id"`
	Spend       decimal.Decimal `json:"spend"`
	Leads       int64           `json:"leads"`
	Clicks      int64           `json:"clicks"`
	Impressions int64           `json:"impressions"`
	Frequency   float64         `json:"frequency"`
}

// IsDelivering reports whether an ad currently counts toward baselines.
func (a Ad) IsDelivering() bool {
	return a.Status == "ACTIVE" || a.Status == "active"
}
