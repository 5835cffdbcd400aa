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
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/leadflowhq/leadflow/model"
)

func testRuleEnv() ruleEnv {
	return ruleEnv{
		cfg: model.AgentConfig{
			FatigueFrequency:   3.5,
			HighSpendThreshold: 500,
			RecentLaunchDays:   3,
			MaxRecsPerBatch:    10,
			MinSpend:           20,
			MinImpressions:     1000,
			MaxDataAgeHours:    6,
		},
		baseline: accountBaseline{
			CPL:      decimal.NewFromInt(10),
			CTR:      0.02,
			HasLeads: true,
			HasCTR:   true,
		},
		now:           time.Now(),
		activeByAdSet: map[string]int{"as_1": 3},
	}
}

func TestFatigueRuleFlagsHighFrequency(t *testing.T) {
	env := testRuleEnv()
	ad := model.Ad{AdID: "ad_1", AdSetID: "as_1", Name: "banner", Status: "ACTIVE"}

	rec := fatigueRule(ad, adMetrics{Frequency: 4.2, Spend: decimal.NewFromInt(100)}, env)
	assert.NotNil(t, rec)
	assert.Equal(t, model.ActionPauseAd, rec.Type)
	assert.Equal(t, "ad_1", rec.EntityID)
	assert.Equal(t, model.RiskMedium, rec.RiskLevel)
	assert.Contains(t, rec.Reason, "frequency 4.2")

	assert.Nil(t, fatigueRule(ad, adMetrics{Frequency: 3.5}, env))
}

func TestUnderperformanceRuleCPLDrift(t *testing.T) {
	env := testRuleEnv()
	ad := model.Ad{AdID: "ad_1", AdSetID: "as_1", Status: "ACTIVE", LaunchedAt: env.now.Add(-10 * 24 * time.Hour)}

	// Baseline CPL is 10, so anything above 13 trips the rule.
	m := adMetrics{CPL: decimal.NewFromInt(14), HasCPL: true, CTR: 0.02, Impressions: 5000, Spend: decimal.NewFromInt(70)}
	rec := underperformanceRule(ad, m, env)
	assert.NotNil(t, rec)
	assert.Contains(t, rec.Reason, "1.3x account baseline")

	m.CPL = decimal.NewFromInt(13)
	assert.Nil(t, underperformanceRule(ad, m, env))
}

func TestUnderperformanceRuleCTRCollapse(t *testing.T) {
	env := testRuleEnv()
	ad := model.Ad{AdID: "ad_1", AdSetID: "as_1", Status: "ACTIVE", LaunchedAt: env.now.Add(-10 * 24 * time.Hour)}

	// No leads on this ad, but CTR below half of baseline 0.02.
	m := adMetrics{CTR: 0.005, Impressions: 8000, Spend: decimal.NewFromInt(50)}
	rec := underperformanceRule(ad, m, env)
	assert.NotNil(t, rec)
	assert.Contains(t, rec.Reason, "less than half the account baseline")
}

func TestUnderperformanceRuleExemptsRecentLaunch(t *testing.T) {
	env := testRuleEnv()
	ad := model.Ad{AdID: "ad_1", AdSetID: "as_1", Status: "ACTIVE", LaunchedAt: env.now.Add(-24 * time.Hour)}

	m := adMetrics{CPL: decimal.NewFromInt(50), HasCPL: true, Impressions: 5000, Spend: decimal.NewFromInt(200)}
	assert.Nil(t, underperformanceRule(ad, m, env))

	// Ads with no recorded launch date get no exemption.
	ad.LaunchedAt = time.Time{}
	assert.NotNil(t, underperformanceRule(ad, m, env))
}

func TestRiskEscalation(t *testing.T) {
	env := testRuleEnv()
	ad := model.Ad{AdID: "ad_1", AdSetID: "as_1", Status: "ACTIVE"}

	assert.Equal(t, model.RiskMedium, riskFor(ad, adMetrics{Spend: decimal.NewFromInt(100)}, env))
	assert.Equal(t, model.RiskHigh, riskFor(ad, adMetrics{Spend: decimal.NewFromInt(600)}, env))

	// Pausing the only active ad in an ad set halts its delivery.
	env.activeByAdSet["as_1"] = 1
	assert.Equal(t, model.RiskHigh, riskFor(ad, adMetrics{Spend: decimal.NewFromInt(100)}, env))
}

func TestInsufficientSample(t *testing.T) {
	cfg := model.AgentConfig{MinSpend: 20, MinImpressions: 1000}

	assert.True(t, insufficientSample(adMetrics{Spend: decimal.NewFromInt(5), Impressions: 5000}, cfg))
	assert.True(t, insufficientSample(adMetrics{Spend: decimal.NewFromInt(100), Impressions: 200}, cfg))
	assert.False(t, insufficientSample(adMetrics{Spend: decimal.NewFromInt(100), Impressions: 5000}, cfg))
}

func TestComputeBaseline(t *testing.T) {
	ads := []model.Ad{
		{AdID: "ad_1", Status: "ACTIVE"},
		{AdID: "ad_2", Status: "ACTIVE"},
		{AdID: "ad_3", Status: "PAUSED"},
	}
	insights := map[string]model.AdInsight{
		"ad_1": {AdID: "ad_1", Spend: decimal.NewFromInt(100), Leads: 10, Clicks: 100, Impressions: 10000},
		"ad_2": {AdID: "ad_2", Spend: decimal.NewFromInt(50), Leads: 5, Clicks: 50, Impressions: 5000},
		"ad_3": {AdID: "ad_3", Spend: decimal.NewFromInt(999), Leads: 1, Clicks: 1, Impressions: 100},
	}

	b := computeBaseline(ads, insights)
	assert.True(t, b.HasLeads)
	assert.True(t, b.HasCTR)
	// Paused ad_3 is excluded: 150 spend / 15 leads.
	assert.True(t, b.CPL.Equal(decimal.NewFromInt(10)))
	assert.InDelta(t, 0.01, b.CTR, 1e-9)

	empty := computeBaseline(nil, nil)
	assert.False(t, empty.HasLeads)
	assert.False(t, empty.HasCTR)
}

func TestCreativeVariationOnlyForHealthySingleAdSets(t *testing.T) {
	env := testRuleEnv()
	adSets := []model.AdSet{
		{AdSetID: "as_1", Name: "prospecting"},
		{AdSetID: "as_2", Name: "retargeting"},
	}
	ads := []model.Ad{
		{AdID: "ad_1", AdSetID: "as_1", Name: "solo", Status: "ACTIVE"},
		{AdID: "ad_2", AdSetID: "as_2", Status: "ACTIVE"},
		{AdID: "ad_3", AdSetID: "as_2", Status: "ACTIVE"},
	}
	insights := map[string]model.AdInsight{
		// CPL 11 is within 1.2x of the baseline 10.
		"ad_1": {AdID: "ad_1", Spend: decimal.NewFromInt(110), Leads: 10, Impressions: 9000},
	}

	recs := creativeVariationRecs(ads, adSets, insights, env)
	assert.Len(t, recs, 1)
	assert.Equal(t, model.ActionCreateAd, recs[0].Type)
	assert.Equal(t, "as_1", recs[0].AdSetID)
	assert.Equal(t, model.RiskLow, recs[0].RiskLevel)

	// Above 1.2x baseline: the single ad is not worth amplifying.
	insights["ad_1"] = model.AdInsight{AdID: "ad_1", Spend: decimal.NewFromInt(130), Leads: 10}
	assert.Empty(t, creativeVariationRecs(ads, adSets, insights, env))
}

func agentConfigNotFound(mock sqlmock.Sqlmock, accountID string) {
	mock.ExpectQuery("SELECT (.+) FROM agent_configs").
		WithArgs(accountID).
		WillReturnError(sql.ErrNoRows)
}

func TestAnalyzeAccount(t *testing.T) {
	l, mock := newTestLeadflow(t)
	now := time.Now()

	agentConfigNotFound(mock, "acct_1")

	mock.ExpectQuery("SELECT (.+) FROM sync_status").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "last_synced_at", "status"}).
			AddRow("acct_1", now.Add(-30*time.Minute), "completed"))

	mock.ExpectQuery("SELECT (.+) FROM ad_sets").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"adset_id", "campaign_id", "account_id", "name", "status"}).
			AddRow("as_1", "cmp_1", "acct_1", "prospecting", "ACTIVE"))

	mock.ExpectQuery("SELECT (.+) FROM ads").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"ad_id", "adset_id", "account_id", "name", "status", "launched_at"}).
			AddRow("ad_1", "as_1", "acct_1", "steady", "ACTIVE", now.Add(-30*24*time.Hour)).
			AddRow("ad_2", "as_1", "acct_1", "fatigued", "ACTIVE", now.Add(-30*24*time.Hour)))

	mock.ExpectQuery("SELECT (.+) FROM ad_insights").
		WithArgs("acct_1", "last_7d").
		WillReturnRows(sqlmock.NewRows([]string{"ad_id", "spend", "leads", "clicks", "impressions", "frequency"}).
			AddRow("ad_1", "100", 10, 100, 10000, 1.8).
			AddRow("ad_2", "120", 12, 110, 11000, 4.6))

	result, err := l.AnalyzeAccount(context.Background(), "acct_1", "last_7d")
	assert.NoError(t, err)
	assert.Equal(t, model.FreshnessFresh, result.DataFreshness)
	assert.Len(t, result.Recommendations, 1)
	assert.Equal(t, model.ActionPauseAd, result.Recommendations[0].Type)
	assert.Equal(t, "ad_2", result.Recommendations[0].EntityID)
	assert.Contains(t, result.Summary, "2 delivering ads analyzed")
	assert.Empty(t, result.MonitorRecommendations)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAnalyzeAccountInsufficientDataGoesToMonitor(t *testing.T) {
	l, mock := newTestLeadflow(t)
	now := time.Now()

	agentConfigNotFound(mock, "acct_1")

	mock.ExpectQuery("SELECT (.+) FROM sync_status").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "last_synced_at", "status"}).
			AddRow("acct_1", now.Add(-1*time.Hour), "completed"))

	mock.ExpectQuery("SELECT (.+) FROM ad_sets").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"adset_id", "campaign_id", "account_id", "name", "status"}).
			AddRow("as_1", "cmp_1", "acct_1", "prospecting", "ACTIVE"))

	// Fatigued, but with only 300 impressions there is not enough sample
	// to justify a pause.
	mock.ExpectQuery("SELECT (.+) FROM ads").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"ad_id", "adset_id", "account_id", "name", "status", "launched_at"}).
			AddRow("ad_1", "as_1", "acct_1", "thin", "ACTIVE", now.Add(-30*24*time.Hour)))

	mock.ExpectQuery("SELECT (.+) FROM ad_insights").
		WithArgs("acct_1", "last_7d").
		WillReturnRows(sqlmock.NewRows([]string{"ad_id", "spend", "leads", "clicks", "impressions", "frequency"}).
			AddRow("ad_1", "8", 0, 10, 300, 5.0))

	result, err := l.AnalyzeAccount(context.Background(), "acct_1", "last_7d")
	assert.NoError(t, err)
	assert.Empty(t, result.Recommendations)
	assert.Len(t, result.MonitorRecommendations, 1)
	assert.False(t, result.MonitorRecommendations[0].Actionable)
	assert.Contains(t, result.MonitorRecommendations[0].Reason, "creative fatigue")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAnalyzeAccountStaleWithoutSyncRecord(t *testing.T) {
	l, mock := newTestLeadflow(t)

	agentConfigNotFound(mock, "acct_1")

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

	result, err := l.AnalyzeAccount(context.Background(), "acct_1", "last_7d")
	assert.NoError(t, err)
	assert.Equal(t, model.FreshnessStale, result.DataFreshness)
	assert.Empty(t, result.Recommendations)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAnalyzeAccountCapsActionableBatch(t *testing.T) {
	l, mock := newTestLeadflow(t)
	now := time.Now()

	// Per-account override caps batches at 2.
	mock.ExpectQuery("SELECT (.+) FROM agent_configs").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "fatigue_frequency", "high_spend_threshold", "recent_launch_days", "max_recs_per_batch", "min_spend", "min_impressions", "max_data_age_hours", "created_at"}).
			AddRow("acct_1", 3.5, 500.0, 3, 2, 20.0, 1000, 6, now))

	mock.ExpectQuery("SELECT (.+) FROM sync_status").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "last_synced_at", "status"}).
			AddRow("acct_1", now.Add(-1*time.Hour), "completed"))

	mock.ExpectQuery("SELECT (.+) FROM ad_sets").
		WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"adset_id", "campaign_id", "account_id", "name", "status"}).
			AddRow("as_1", "cmp_1", "acct_1", "prospecting", "ACTIVE"))

	adRows := sqlmock.NewRows([]string{"ad_id", "adset_id", "account_id", "name", "status", "launched_at"})
	insightRows := sqlmock.NewRows([]string{"ad_id", "spend", "leads", "clicks", "impressions", "frequency"})
	for _, id := range []string{"ad_1", "ad_2", "ad_3", "ad_4"} {
		adRows.AddRow(id, "as_1", "acct_1", id, "ACTIVE", now.Add(-30*24*time.Hour))
		insightRows.AddRow(id, "100", 10, 100, 10000, 5.0)
	}
	mock.ExpectQuery("SELECT (.+) FROM ads").WithArgs("acct_1").WillReturnRows(adRows)
	mock.ExpectQuery("SELECT (.+) FROM ad_insights").WithArgs("acct_1", "last_7d").WillReturnRows(insightRows)

	result, err := l.AnalyzeAccount(context.Background(), "acct_1", "last_7d")
	assert.NoError(t, err)
	assert.Len(t, result.Recommendations, 2)
	assert.Len(t, result.MonitorRecommendations, 2)
	for _, rec := range result.MonitorRecommendations {
		assert.False(t, rec.Actionable)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
