// Package analytics computes derived reports over the accumulated set of
// normalized transactions. Every function here is pure: identical inputs
// produce identical reports, which the accumulator relies on when it
// recomputes from scratch each cycle.
package analytics

import (
	"time"

	"github.com/contract-pulse/internal/types"
)

// FinancialMetrics aggregates value flow through the contract
type FinancialMetrics struct {
	TotalVolumeEth  float64 `json:"totalVolumeEth"`
	AverageValueEth float64 `json:"averageValueEth"`
	MaxValueEth     float64 `json:"maxValueEth"`
	TotalGasEth     float64 `json:"totalGasEth"`
}

// ActivityMetrics aggregates usage over time
type ActivityMetrics struct {
	TotalTransactions  int     `json:"totalTransactions"`
	UniqueSenders      int     `json:"uniqueSenders"`
	TransactionsPerDay float64 `json:"transactionsPerDay"`
	ActiveSpanDays     float64 `json:"activeSpanDays"`
	FirstActivity      int64   `json:"firstActivity,omitempty"`
	LastActivity       int64   `json:"lastActivity,omitempty"`
}

// PerformanceMetrics aggregates execution outcomes
type PerformanceMetrics struct {
	SuccessRate       float64 `json:"successRate"` // 0-100
	FailedCount       int     `json:"failedCount"`
	AverageGasCostEth float64 `json:"averageGasCostEth"`
}

// MetricsReport combines financial, activity and performance aggregates
type MetricsReport struct {
	Financial   FinancialMetrics   `json:"financial"`
	Activity    ActivityMetrics    `json:"activity"`
	Performance PerformanceMetrics `json:"performance"`
}

// CalculateAllMetrics computes the full metrics report over the accumulated
// transaction set
func CalculateAllMetrics(txs []types.NormalizedTransaction) MetricsReport {
	report := MetricsReport{}
	if len(txs) == 0 {
		return report
	}

	senders := make(map[string]struct{})
	var first, last int64
	first = txs[0].Timestamp
	last = txs[0].Timestamp

	for _, tx := range txs {
		report.Financial.TotalVolumeEth += tx.ValueEth
		report.Financial.TotalGasEth += tx.GasCostEth
		if tx.ValueEth > report.Financial.MaxValueEth {
			report.Financial.MaxValueEth = tx.ValueEth
		}

		senders[tx.From] = struct{}{}
		if tx.Timestamp < first {
			first = tx.Timestamp
		}
		if tx.Timestamp > last {
			last = tx.Timestamp
		}

		if tx.Status == types.StatusFailed {
			report.Performance.FailedCount++
		}
	}

	n := len(txs)
	report.Financial.AverageValueEth = report.Financial.TotalVolumeEth / float64(n)

	report.Activity.TotalTransactions = n
	report.Activity.UniqueSenders = len(senders)
	report.Activity.FirstActivity = first
	report.Activity.LastActivity = last
	spanDays := float64(last-first) / float64(24*time.Hour/time.Second)
	report.Activity.ActiveSpanDays = spanDays
	if spanDays > 0 {
		report.Activity.TransactionsPerDay = float64(n) / spanDays
	} else {
		report.Activity.TransactionsPerDay = float64(n)
	}

	report.Performance.SuccessRate = float64(n-report.Performance.FailedCount) / float64(n) * 100
	report.Performance.AverageGasCostEth = report.Financial.TotalGasEth / float64(n)

	return report
}
