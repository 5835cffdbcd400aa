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

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"
)

// AnalysisResult is the output of one account analysis run. Actionable and
// monitor-only recommendations are reported separately; nothing is silently
// dropped.
type AnalysisResult struct {
	Summary                string                 `json:"analysis_summary"`
	DataFreshness          string                 `json:"data_freshness"`
	Recommendations        []model.Recommendation `json:"recommendations"`
	MonitorRecommendations []model.Recommendation `json:"monitor_recommendations"`
}

// accountBaseline carries the account-wide comparison metrics.
type accountBaseline struct {
	CPL      decimal.Decimal
	CTR      float64
	HasLeads bool
	HasCTR   bool
}

// adMetrics is one ad's own performance over the analysis window.
type adMetrics struct {
	Spend       decimal.Decimal
	CPL         decimal.Decimal
	HasCPL      bool
	CTR         float64
	Impressions int64
	Frequency   float64
}

// ruleEnv is the shared context every classification rule sees.
type ruleEnv struct {
	cfg           model.AgentConfig
	baseline      accountBaseline
	now           time.Time
	activeByAdSet map[string]int
}

// classifier is one independent rule. Rules are evaluated in fixed priority
// order per ad; the first non-nil result wins.
type classifier func(ad model.Ad, m adMetrics, env ruleEnv) *model.Recommendation

// AnalyzeAccount scores live campaign performance for one account and
// proposes corrective actions, gated by data sufficiency.
func (l *Leadflow) AnalyzeAccount(ctx context.Context, accountID, datePreset string) (*AnalysisResult, error) {
	ctx, span := otel.Tracer("leadflow.agent").Start(ctx, "AnalyzeAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	cfg, err := l.effectiveAgentConfig(ctx, accountID)
	if err != nil {
		return nil, err
	}

	freshness, err := l.dataFreshness(ctx, accountID, cfg)
	if err != nil {
		return nil, err
	}

	adSets, err := l.datasource.GetAdSets(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ads, err := l.datasource.GetAds(ctx, accountID)
	if err != nil {
		return nil, err
	}
	insights, err := l.datasource.GetAdInsights(ctx, accountID, datePreset)
	if err != nil {
		return nil, err
	}

	insightByAd := make(map[string]model.AdInsight, len(insights))
	for _, in := range insights {
		insightByAd[in.AdID] = in
	}

	env := ruleEnv{
		cfg:           cfg,
		baseline:      computeBaseline(ads, insightByAd),
		now:           time.Now(),
		activeByAdSet: countActiveAds(ads),
	}

	rules := []classifier{fatigueRule, underperformanceRule}

	var actionable, monitor []model.Recommendation
	for _, ad := range ads {
		if !ad.IsDelivering() {
			continue
		}
		m := metricsFor(ad, insightByAd)

		for _, rule := range rules {
			rec := rule(ad, m, env)
			if rec == nil {
				continue
			}
			if insufficientSample(m, cfg) {
				// Too little data to act on, but the diagnostic still matters.
				rec.Actionable = false
				monitor = append(monitor, *rec)
			} else {
				actionable = append(actionable, *rec)
			}
			break
		}
	}

	actionable = append(actionable, creativeVariationRecs(ads, adSets, insightByAd, env)...)

	// Cap actionable output; overflow is reported, never dropped.
	if len(actionable) > cfg.MaxRecsPerBatch {
		overflow := actionable[cfg.MaxRecsPerBatch:]
		actionable = actionable[:cfg.MaxRecsPerBatch]
		for i := range overflow {
			overflow[i].Actionable = false
		}
		monitor = append(monitor, overflow...)
	}

	delivering := 0
	for _, n := range env.activeByAdSet {
		delivering += n
	}
	summary := fmt.Sprintf("%d delivering ads analyzed, %d actionable recommendations, %d to monitor",
		delivering, len(actionable), len(monitor))
	if env.baseline.HasLeads {
		summary = fmt.Sprintf("baseline CPL %s; %s", env.baseline.CPL.StringFixed(2), summary)
	}

	return &AnalysisResult{
		Summary:                summary,
		DataFreshness:          freshness,
		Recommendations:        actionable,
		MonitorRecommendations: monitor,
	}, nil
}

// effectiveAgentConfig merges the per-account row over the configured
// defaults. Accounts without a row run entirely on defaults.
func (l *Leadflow) effectiveAgentConfig(ctx context.Context, accountID string) (model.AgentConfig, error) {
	conf, err := config.Fetch()
	if err != nil {
		return model.AgentConfig{}, err
	}

	cfg := model.AgentConfig{
		AccountID:          accountID,
		FatigueFrequency:   conf.Agent.FatigueFrequency,
		HighSpendThreshold: conf.Agent.HighSpendThreshold,
		RecentLaunchDays:   conf.Agent.RecentLaunchDays,
		MaxRecsPerBatch:    conf.Agent.MaxRecsPerBatch,
		MinSpend:           conf.Agent.MinSpend,
		MinImpressions:     conf.Agent.MinImpressions,
		MaxDataAgeHours:    conf.Agent.MaxDataAgeHours,
	}

	stored, err := l.datasource.GetAgentConfig(ctx, accountID)
	if err != nil {
		if apierror.Is(err, apierror.ErrNotFound) {
			return cfg, nil
		}
		return model.AgentConfig{}, err
	}

	if stored.FatigueFrequency > 0 {
		cfg.FatigueFrequency = stored.FatigueFrequency
	}
	if stored.HighSpendThreshold > 0 {
		cfg.HighSpendThreshold = stored.HighSpendThreshold
	}
	if stored.RecentLaunchDays > 0 {
		cfg.RecentLaunchDays = stored.RecentLaunchDays
	}
	if stored.MaxRecsPerBatch > 0 {
		cfg.MaxRecsPerBatch = stored.MaxRecsPerBatch
	}
	if stored.MinSpend > 0 {
		cfg.MinSpend = stored.MinSpend
	}
	if stored.MinImpressions > 0 {
		cfg.MinImpressions = stored.MinImpressions
	}
	if stored.MaxDataAgeHours > 0 {
		cfg.MaxDataAgeHours = stored.MaxDataAgeHours
	}

	return cfg, nil
}

// dataFreshness reports whether the account's synced snapshots are recent
// enough to act on. A missing sync record counts as stale.
func (l *Leadflow) dataFreshness(ctx context.Context, accountID string, cfg model.AgentConfig) (string, error) {
	status, err := l.datasource.GetSyncStatus(ctx, accountID)
	if err != nil {
		if apierror.Is(err, apierror.ErrNotFound) {
			return model.FreshnessStale, nil
		}
		return "", err
	}

	maxAge := time.Duration(cfg.MaxDataAgeHours) * time.Hour
	if time.Since(status.LastSyncedAt) > maxAge {
		return model.FreshnessStale, nil
	}
	return model.FreshnessFresh, nil
}

func computeBaseline(ads []model.Ad, insightByAd map[string]model.AdInsight) accountBaseline {
	totalSpend := decimal.Zero
	var totalLeads, totalClicks, totalImpressions int64

	for _, ad := range ads {
		if !ad.IsDelivering() {
			continue
		}
		in, ok := insightByAd[ad.AdID]
		if !ok {
			continue
		}
		totalSpend = totalSpend.Add(in.Spend)
		totalLeads += in.Leads
		totalClicks += in.Clicks
		totalImpressions += in.Impressions
	}

	b := accountBaseline{}
	if totalLeads > 0 {
		b.CPL = totalSpend.Div(decimal.NewFromInt(totalLeads))
		b.HasLeads = true
	}
	if totalImpressions > 0 {
		b.CTR = float64(totalClicks) / float64(totalImpressions)
		b.HasCTR = true
	}
	return b
}

func countActiveAds(ads []model.Ad) map[string]int {
	active := make(map[string]int)
	for _, ad := range ads {
		if ad.IsDelivering() {
			active[ad.AdSetID]++
		}
	}
	return active
}

func metricsFor(ad model.Ad, insightByAd map[string]model.AdInsight) adMetrics {
	in := insightByAd[ad.AdID]
	m := adMetrics{
		Spend:       in.Spend,
		Impressions: in.Impressions,
		Frequency:   in.Frequency,
	}
	if in.Leads > 0 {
		m.CPL = in.Spend.Div(decimal.NewFromInt(in.Leads))
		m.HasCPL = true
	}
	if in.Impressions > 0 {
		m.CTR = float64(in.Clicks) / float64(in.Impressions)
	}
	return m
}

// fatigueRule flags ads whose audience has seen them too often.
func fatigueRule(ad model.Ad, m adMetrics, env ruleEnv) *model.Recommendation {
	if m.Frequency <= env.cfg.FatigueFrequency {
		return nil
	}
	rec := &model.Recommendation{
		Type:       model.ActionPauseAd,
		EntityID:   ad.AdID,
		EntityName: ad.Name,
		AdSetID:    ad.AdSetID,
		Reason:     fmt.Sprintf("creative fatigue: average frequency %.1f exceeds threshold %.1f", m.Frequency, env.cfg.FatigueFrequency),
		RiskLevel:  riskFor(ad, m, env),
		Actionable: true,
	}
	return rec
}

// underperformanceRule flags ads whose CPL or CTR has drifted too far from
// the account baseline. Recently launched ads are exempt while they exit the
// learning phase.
func underperformanceRule(ad model.Ad, m adMetrics, env ruleEnv) *model.Recommendation {
	launchGrace := time.Duration(env.cfg.RecentLaunchDays) * 24 * time.Hour
	if !ad.LaunchedAt.IsZero() && env.now.Sub(ad.LaunchedAt) < launchGrace {
		return nil
	}

	var reason string
	if env.baseline.HasLeads && m.HasCPL {
		limit := env.baseline.CPL.Mul(decimal.NewFromFloat(1.3))
		if m.CPL.GreaterThan(limit) {
			reason = fmt.Sprintf("CPL %s is more than 1.3x account baseline %s", m.CPL.StringFixed(2), env.baseline.CPL.StringFixed(2))
		}
	}
	if reason == "" && env.baseline.HasCTR && m.Impressions > 0 {
		if m.CTR < env.baseline.CTR*0.5 {
			reason = fmt.Sprintf("CTR %.4f is less than half the account baseline %.4f", m.CTR, env.baseline.CTR)
		}
	}
	if reason == "" {
		return nil
	}

	return &model.Recommendation{
		Type:       model.ActionPauseAd,
		EntityID:   ad.AdID,
		EntityName: ad.Name,
		AdSetID:    ad.AdSetID,
		Reason:     reason,
		RiskLevel:  riskFor(ad, m, env),
		Actionable: true,
	}
}

// riskFor escalates to high when real money is at stake or pausing the ad
// would halt delivery for its whole ad set.
func riskFor(ad model.Ad, m adMetrics, env ruleEnv) string {
	if m.Spend.GreaterThan(decimal.NewFromFloat(env.cfg.HighSpendThreshold)) {
		return model.RiskHigh
	}
	if env.activeByAdSet[ad.AdSetID] <= 1 {
		return model.RiskHigh
	}
	return model.RiskMedium
}

// insufficientSample prevents acting on statistically insignificant data.
func insufficientSample(m adMetrics, cfg model.AgentConfig) bool {
	return m.Spend.LessThan(decimal.NewFromFloat(cfg.MinSpend)) || m.Impressions < cfg.MinImpressions
}

// creativeVariationRecs proposes a new creative for single-ad ad sets that
// are performing near baseline, so delivery never depends on one creative.
func creativeVariationRecs(ads []model.Ad, adSets []model.AdSet, insightByAd map[string]model.AdInsight, env ruleEnv) []model.Recommendation {
	if !env.baseline.HasLeads {
		return nil
	}

	adsByAdSet := make(map[string][]model.Ad)
	for _, ad := range ads {
		if ad.IsDelivering() {
			adsByAdSet[ad.AdSetID] = append(adsByAdSet[ad.AdSetID], ad)
		}
	}

	limit := env.baseline.CPL.Mul(decimal.NewFromFloat(1.2))

	var recs []model.Recommendation
	for _, as := range adSets {
		active := adsByAdSet[as.AdSetID]
		if len(active) != 1 {
			continue
		}
		m := metricsFor(active[0], insightByAd)
		if !m.HasCPL || m.CPL.GreaterThan(limit) {
			continue
		}
		recs = append(recs, model.Recommendation{
			Type:       model.ActionCreateAd,
			EntityID:   active[0].AdID,
			EntityName: active[0].Name,
			AdSetID:    as.AdSetID,
			Reason:     fmt.Sprintf("ad set %s has a single active ad performing near baseline; add a creative variation", as.Name),
			RiskLevel:  model.RiskLow,
			Actionable: true,
		})
	}
	return recs
}
