package analytics

import (
	"sort"
	"strings"

	"github.com/contract-pulse/internal/types"
)

// PathCount pairs a journey path (function names joined by " > ") with how
// many users took it
type PathCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// JourneyReport describes how users move through the contract's functions
type JourneyReport struct {
	TotalUsers           int                `json:"totalUsers"`
	AverageJourneyLength float64            `json:"averageJourneyLength"`
	CommonPaths          []PathCount        `json:"commonPaths"`
	EntryPoints          []PathCount        `json:"entryPoints"`
	FeatureAdoption      map[string]float64 `json:"featureAdoption"` // function -> share of users, 0-100
	DropoffPoints        []PathCount        `json:"dropoffPoints"`
	JourneyDistribution  map[string]int     `json:"journeyDistribution"` // length bucket -> users
}

const maxReportedPaths = 10

// AnalyzeJourneys reconstructs per-user function sequences from the
// accumulated transaction set
func AnalyzeJourneys(txs []types.NormalizedTransaction) JourneyReport {
	report := JourneyReport{
		CommonPaths:         []PathCount{},
		EntryPoints:         []PathCount{},
		DropoffPoints:       []PathCount{},
		FeatureAdoption:     map[string]float64{},
		JourneyDistribution: map[string]int{},
	}
	if len(txs) == 0 {
		return report
	}

	ordered := make([]types.NormalizedTransaction, len(txs))
	copy(ordered, txs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Timestamp != ordered[j].Timestamp {
			return ordered[i].Timestamp < ordered[j].Timestamp
		}
		return ordered[i].Hash < ordered[j].Hash
	})

	journeys := make(map[string][]string)
	for _, tx := range ordered {
		journeys[tx.From] = append(journeys[tx.From], funcName(tx))
	}
	report.TotalUsers = len(journeys)

	pathCounts := make(map[string]int)
	entryCounts := make(map[string]int)
	exitCounts := make(map[string]int)
	adoption := make(map[string]int) // function -> distinct users
	totalLength := 0

	for _, journey := range journeys {
		totalLength += len(journey)
		entryCounts[journey[0]]++
		exitCounts[journey[len(journey)-1]]++
		pathCounts[strings.Join(journey, " > ")]++
		report.JourneyDistribution[lengthBucket(len(journey))]++

		seen := make(map[string]struct{})
		for _, fn := range journey {
			if _, ok := seen[fn]; ok {
				continue
			}
			seen[fn] = struct{}{}
			adoption[fn]++
		}
	}

	for fn, users := range adoption {
		report.FeatureAdoption[fn] = float64(users) / float64(report.TotalUsers) * 100
	}

	report.AverageJourneyLength = float64(totalLength) / float64(report.TotalUsers)
	report.CommonPaths = topPaths(pathCounts, maxReportedPaths)
	report.EntryPoints = topPaths(entryCounts, maxReportedPaths)
	report.DropoffPoints = topPaths(exitCounts, maxReportedPaths)

	return report
}

// lengthBucket buckets journey lengths for the distribution report
func lengthBucket(n int) string {
	switch {
	case n <= 1:
		return "1"
	case n <= 5:
		return "2-5"
	case n <= 10:
		return "6-10"
	default:
		return "10+"
	}
}

// topPaths returns the n most frequent paths, count-descending with a stable
// path tiebreak
func topPaths(counts map[string]int, n int) []PathCount {
	paths := make([]PathCount, 0, len(counts))
	for path, count := range counts {
		paths = append(paths, PathCount{Path: path, Count: count})
	}
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Count != paths[j].Count {
			return paths[i].Count > paths[j].Count
		}
		return paths[i].Path < paths[j].Path
	})
	if len(paths) > n {
		paths = paths[:n]
	}
	return paths
}
