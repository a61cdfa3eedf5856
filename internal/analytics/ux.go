package analytics

import (
	"fmt"
	"sort"

	"github.com/contract-pulse/internal/types"
)

// Session gaps longer than this start a new session.
const sessionGapSeconds = 30 * 60

// Bottleneck is a contract function with a failure rate high enough to be a
// likely UX obstacle
type Bottleneck struct {
	Function    string  `json:"function"`
	Attempts    int     `json:"attempts"`
	Failures    int     `json:"failures"`
	FailureRate float64 `json:"failureRate"` // 0-100
}

// FailurePattern counts failures per function regardless of severity
type FailurePattern struct {
	Function string `json:"function"`
	Count    int    `json:"count"`
}

// SessionStats summarizes user session durations in seconds
type SessionStats struct {
	TotalSessions   int     `json:"totalSessions"`
	AverageDuration float64 `json:"averageDuration"`
	MaxDuration     float64 `json:"maxDuration"`
}

// UXGrade is a letter grade derived from completion and failure rates
type UXGrade struct {
	Grade          string  `json:"grade"`
	CompletionRate float64 `json:"completionRate"` // 0-100
	FailureRate    float64 `json:"failureRate"`    // 0-100
}

// UXReport is the full bottleneck analysis over the accumulated set
type UXReport struct {
	Bottlenecks        []Bottleneck     `json:"bottlenecks"`
	SessionDurations   SessionStats     `json:"sessionDurations"`
	FailurePatterns    []FailurePattern `json:"failurePatterns"`
	Grade              UXGrade          `json:"uxGrade"`
	TimeToFirstSuccess float64          `json:"timeToFirstSuccess"` // seconds, averaged per user
	Summary            string           `json:"summary"`
}

// AnalyzeUXBottlenecks derives funnel and failure insight from the
// accumulated transaction set
func AnalyzeUXBottlenecks(txs []types.NormalizedTransaction) UXReport {
	report := UXReport{
		Bottlenecks:     []Bottleneck{},
		FailurePatterns: []FailurePattern{},
	}
	if len(txs) == 0 {
		report.Grade = UXGrade{Grade: "N/A"}
		report.Summary = "no transactions to analyze"
		return report
	}

	type funcStats struct {
		attempts int
		failures int
	}
	byFunc := make(map[string]*funcStats)
	failed := 0
	for _, tx := range txs {
		name := funcName(tx)
		st, ok := byFunc[name]
		if !ok {
			st = &funcStats{}
			byFunc[name] = st
		}
		st.attempts++
		if tx.Status == types.StatusFailed {
			st.failures++
			failed++
		}
	}

	for name, st := range byFunc {
		if st.failures == 0 {
			continue
		}
		report.FailurePatterns = append(report.FailurePatterns, FailurePattern{
			Function: name,
			Count:    st.failures,
		})
		rate := float64(st.failures) / float64(st.attempts) * 100
		// A function failing more than a fifth of the time is a bottleneck
		if rate >= 20 && st.attempts >= 3 {
			report.Bottlenecks = append(report.Bottlenecks, Bottleneck{
				Function:    name,
				Attempts:    st.attempts,
				Failures:    st.failures,
				FailureRate: rate,
			})
		}
	}
	sort.Slice(report.FailurePatterns, func(i, j int) bool {
		if report.FailurePatterns[i].Count != report.FailurePatterns[j].Count {
			return report.FailurePatterns[i].Count > report.FailurePatterns[j].Count
		}
		return report.FailurePatterns[i].Function < report.FailurePatterns[j].Function
	})
	sort.Slice(report.Bottlenecks, func(i, j int) bool {
		if report.Bottlenecks[i].FailureRate != report.Bottlenecks[j].FailureRate {
			return report.Bottlenecks[i].FailureRate > report.Bottlenecks[j].FailureRate
		}
		return report.Bottlenecks[i].Function < report.Bottlenecks[j].Function
	})

	report.SessionDurations = sessionStats(txs)
	report.TimeToFirstSuccess = averageTimeToFirstSuccess(txs)

	completion := float64(len(txs)-failed) / float64(len(txs)) * 100
	failureRate := float64(failed) / float64(len(txs)) * 100
	report.Grade = UXGrade{
		Grade:          gradeFor(completion),
		CompletionRate: completion,
		FailureRate:    failureRate,
	}
	report.Summary = fmt.Sprintf("%d transactions, %.1f%% completion, %d bottleneck functions",
		len(txs), completion, len(report.Bottlenecks))

	return report
}

func funcName(tx types.NormalizedTransaction) string {
	if tx.FuncName != nil && *tx.FuncName != "" {
		return *tx.FuncName
	}
	return "transfer"
}

// gradeFor maps a completion rate to a letter grade
func gradeFor(completionRate float64) string {
	switch {
	case completionRate >= 95:
		return "A"
	case completionRate >= 85:
		return "B"
	case completionRate >= 70:
		return "C"
	case completionRate >= 50:
		return "D"
	default:
		return "F"
	}
}

// sessionStats splits each user's ordered activity into sessions at gaps
// longer than sessionGapSeconds and summarizes their durations
func sessionStats(txs []types.NormalizedTransaction) SessionStats {
	byUser := groupTimestampsByUser(txs)

	stats := SessionStats{}
	var totalDuration float64
	for _, stamps := range byUser {
		sessionStart := stamps[0]
		prev := stamps[0]
		for _, ts := range stamps[1:] {
			if ts-prev > sessionGapSeconds {
				duration := float64(prev - sessionStart)
				totalDuration += duration
				if duration > stats.MaxDuration {
					stats.MaxDuration = duration
				}
				stats.TotalSessions++
				sessionStart = ts
			}
			prev = ts
		}
		duration := float64(prev - sessionStart)
		totalDuration += duration
		if duration > stats.MaxDuration {
			stats.MaxDuration = duration
		}
		stats.TotalSessions++
	}

	if stats.TotalSessions > 0 {
		stats.AverageDuration = totalDuration / float64(stats.TotalSessions)
	}
	return stats
}

// averageTimeToFirstSuccess averages, over users that ever succeeded, the
// time from their first attempt to their first successful transaction
func averageTimeToFirstSuccess(txs []types.NormalizedTransaction) float64 {
	type firstTimes struct {
		firstAttempt int64
		firstSuccess int64
		hasSuccess   bool
	}
	byUser := make(map[string]*firstTimes)
	for _, tx := range txs {
		ft, ok := byUser[tx.From]
		if !ok {
			ft = &firstTimes{firstAttempt: tx.Timestamp}
			byUser[tx.From] = ft
		}
		if tx.Timestamp < ft.firstAttempt {
			ft.firstAttempt = tx.Timestamp
		}
		if tx.Status == types.StatusSuccess {
			if !ft.hasSuccess || tx.Timestamp < ft.firstSuccess {
				ft.firstSuccess = tx.Timestamp
				ft.hasSuccess = true
			}
		}
	}

	var total float64
	count := 0
	for _, ft := range byUser {
		if ft.hasSuccess {
			total += float64(ft.firstSuccess - ft.firstAttempt)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// groupTimestampsByUser returns each sender's timestamps sorted ascending
func groupTimestampsByUser(txs []types.NormalizedTransaction) map[string][]int64 {
	byUser := make(map[string][]int64)
	for _, tx := range txs {
		byUser[tx.From] = append(byUser[tx.From], tx.Timestamp)
	}
	for _, stamps := range byUser {
		sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	}
	return byUser
}
