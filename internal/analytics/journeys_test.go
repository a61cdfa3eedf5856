package analytics

import (
	"testing"

	"github.com/contract-pulse/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeJourneys(t *testing.T) {
	t.Run("empty input yields empty report", func(t *testing.T) {
		report := AnalyzeJourneys(nil)
		assert.Equal(t, 0, report.TotalUsers)
		assert.Empty(t, report.CommonPaths)
	})

	t.Run("reconstructs ordered per-user paths", func(t *testing.T) {
		// Two users take the same approve > swap path, one only approves
		report := AnalyzeJourneys([]types.NormalizedTransaction{
			txWithFunc("0xa1", "0x1", "approve", 1000, types.StatusSuccess),
			txWithFunc("0xa2", "0x1", "swap", 2000, types.StatusSuccess),
			txWithFunc("0xb1", "0x2", "approve", 1500, types.StatusSuccess),
			txWithFunc("0xb2", "0x2", "swap", 2500, types.StatusSuccess),
			txWithFunc("0xc1", "0x3", "approve", 3000, types.StatusSuccess),
		})

		assert.Equal(t, 3, report.TotalUsers)
		require.NotEmpty(t, report.CommonPaths)
		assert.Equal(t, "approve > swap", report.CommonPaths[0].Path)
		assert.Equal(t, 2, report.CommonPaths[0].Count)

		require.NotEmpty(t, report.EntryPoints)
		assert.Equal(t, "approve", report.EntryPoints[0].Path)
		assert.Equal(t, 3, report.EntryPoints[0].Count)

		assert.InDelta(t, 100.0, report.FeatureAdoption["approve"], 1e-9)
		assert.InDelta(t, 66.67, report.FeatureAdoption["swap"], 0.01)
	})

	t.Run("orders journeys by timestamp regardless of input order", func(t *testing.T) {
		report := AnalyzeJourneys([]types.NormalizedTransaction{
			txWithFunc("0xa2", "0x1", "swap", 2000, types.StatusSuccess),
			txWithFunc("0xa1", "0x1", "approve", 1000, types.StatusSuccess),
		})

		require.Len(t, report.CommonPaths, 1)
		assert.Equal(t, "approve > swap", report.CommonPaths[0].Path)
	})

	t.Run("buckets journey lengths", func(t *testing.T) {
		var txs []types.NormalizedTransaction
		txs = append(txs, txWithFunc("0xs1", "0xsingle", "mint", 1000, types.StatusSuccess))
		for i := 0; i < 4; i++ {
			txs = append(txs, txWithFunc(
				"0xm"+string(rune('a'+i)), "0xmulti", "mint", int64(2000+i), types.StatusSuccess))
		}

		report := AnalyzeJourneys(txs)
		assert.Equal(t, 1, report.JourneyDistribution["1"])
		assert.Equal(t, 1, report.JourneyDistribution["2-5"])
	})

	t.Run("dropoff points are journey exits", func(t *testing.T) {
		report := AnalyzeJourneys([]types.NormalizedTransaction{
			txWithFunc("0xa1", "0x1", "approve", 1000, types.StatusSuccess),
			txWithFunc("0xa2", "0x1", "swap", 2000, types.StatusSuccess),
		})

		require.Len(t, report.DropoffPoints, 1)
		assert.Equal(t, "swap", report.DropoffPoints[0].Path)
	})
}
