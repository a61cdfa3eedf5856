package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/contract-pulse/internal/types"
)

// Lifecycle stage boundaries, measured backwards from the newest observed
// activity in the accumulated set.
const (
	dormantAfterDays = 14
	churnedAfterDays = 30
	newWithinDays    = 7
)

// Cohort groups users by the ISO week of their first transaction
type Cohort struct {
	WeekStart string `json:"weekStart"` // YYYY-MM-DD of the Monday
	Users     int    `json:"users"`
	Retained  int    `json:"retained"` // still active in the final week of data
}

// ActivationMetrics captures how many users get past their first transaction
type ActivationMetrics struct {
	ActivationRate float64 `json:"activationRate"` // 0-100, users with 2+ txs
	ActivatedUsers int     `json:"activatedUsers"`
}

// ProgressionAnalysis summarizes movement between lifecycle stages
type ProgressionAnalysis struct {
	NewToActive  int `json:"newToActive"`
	ActiveAtRisk int `json:"activeAtRisk"` // dormant but not churned
	ChurnedUsers int `json:"churnedUsers"`
}

// LifecycleSummary is the roll-up consumers read first
type LifecycleSummary struct {
	RetentionRate float64 `json:"retentionRate"` // 0-100
	TotalUsers    int     `json:"totalUsers"`
	Description   string  `json:"description"`
}

// LifecycleReport classifies every accumulated user into a lifecycle stage
type LifecycleReport struct {
	LifecycleDistribution map[string]int      `json:"lifecycleDistribution"`
	WalletClassification  map[string]int      `json:"walletClassification"` // by tx volume bucket
	CohortAnalysis        []Cohort            `json:"cohortAnalysis"`
	ActivationMetrics     ActivationMetrics   `json:"activationMetrics"`
	ProgressionAnalysis   ProgressionAnalysis `json:"progressionAnalysis"`
	Summary               LifecycleSummary    `json:"summary"`
}

// AnalyzeUserLifecycle classifies users by recency and tenure relative to the
// newest activity in the accumulated set. Using the dataset's own horizon
// keeps the function pure and replayable.
func AnalyzeUserLifecycle(txs []types.NormalizedTransaction) LifecycleReport {
	report := LifecycleReport{
		LifecycleDistribution: map[string]int{},
		WalletClassification:  map[string]int{},
		CohortAnalysis:        []Cohort{},
	}
	if len(txs) == 0 {
		return report
	}

	type userSpan struct {
		firstSeen int64
		lastSeen  int64
		txCount   int
	}
	users := make(map[string]*userSpan)
	var horizon int64
	for _, tx := range txs {
		span, ok := users[tx.From]
		if !ok {
			span = &userSpan{firstSeen: tx.Timestamp, lastSeen: tx.Timestamp}
			users[tx.From] = span
		}
		if tx.Timestamp < span.firstSeen {
			span.firstSeen = tx.Timestamp
		}
		if tx.Timestamp > span.lastSeen {
			span.lastSeen = tx.Timestamp
		}
		span.txCount++
		if tx.Timestamp > horizon {
			horizon = tx.Timestamp
		}
	}

	day := int64(24 * time.Hour / time.Second)
	finalWeekStart := horizon - 7*day

	cohorts := make(map[string]*Cohort)
	activated := 0
	retainedTotal := 0

	for _, span := range users {
		stage := lifecycleStage(span.firstSeen, span.lastSeen, horizon)
		report.LifecycleDistribution[stage]++
		report.WalletClassification[walletBucket(span.txCount)]++

		if span.txCount >= 2 {
			activated++
		}

		week := mondayOf(span.firstSeen)
		cohort, ok := cohorts[week]
		if !ok {
			cohort = &Cohort{WeekStart: week}
			cohorts[week] = cohort
		}
		cohort.Users++
		if span.lastSeen >= finalWeekStart {
			cohort.Retained++
			retainedTotal++
		}

		switch stage {
		case "active":
			if horizon-span.firstSeen <= newWithinDays*day {
				report.ProgressionAnalysis.NewToActive++
			}
		case "dormant":
			report.ProgressionAnalysis.ActiveAtRisk++
		case "churned":
			report.ProgressionAnalysis.ChurnedUsers++
		}
	}

	weeks := make([]string, 0, len(cohorts))
	for week := range cohorts {
		weeks = append(weeks, week)
	}
	sort.Strings(weeks)
	for _, week := range weeks {
		report.CohortAnalysis = append(report.CohortAnalysis, *cohorts[week])
	}

	total := len(users)
	report.ActivationMetrics = ActivationMetrics{
		ActivationRate: float64(activated) / float64(total) * 100,
		ActivatedUsers: activated,
	}
	retention := float64(retainedTotal) / float64(total) * 100
	report.Summary = LifecycleSummary{
		RetentionRate: retention,
		TotalUsers:    total,
		Description: fmt.Sprintf("%d users, %.1f%% retained in the final week, %.1f%% activated",
			total, retention, report.ActivationMetrics.ActivationRate),
	}

	return report
}

// lifecycleStage classifies a user relative to the dataset horizon
func lifecycleStage(firstSeen, lastSeen, horizon int64) string {
	day := int64(24 * time.Hour / time.Second)
	sinceLast := horizon - lastSeen
	switch {
	case sinceLast > churnedAfterDays*day:
		return "churned"
	case sinceLast > dormantAfterDays*day:
		return "dormant"
	case horizon-firstSeen <= newWithinDays*day:
		return "new"
	default:
		return "active"
	}
}

// walletBucket classifies wallets by accumulated transaction count
func walletBucket(txCount int) string {
	switch {
	case txCount >= 50:
		return "heavy"
	case txCount >= 10:
		return "regular"
	case txCount >= 2:
		return "repeat"
	default:
		return "one_time"
	}
}

// mondayOf returns the date of the Monday of the week containing ts
func mondayOf(ts int64) string {
	t := time.Unix(ts, 0).UTC()
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)
	return monday.Format("2006-01-02")
}
