package analytics

import (
	"testing"

	"github.com/contract-pulse/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lifecycleDay = int64(86400)

func TestAnalyzeUserLifecycle(t *testing.T) {
	t.Run("empty input yields empty report", func(t *testing.T) {
		report := AnalyzeUserLifecycle(nil)
		assert.Equal(t, 0, report.Summary.TotalUsers)
		assert.Empty(t, report.CohortAnalysis)
	})

	t.Run("stages are measured from the dataset horizon", func(t *testing.T) {
		horizon := int64(100) * lifecycleDay
		report := AnalyzeUserLifecycle([]types.NormalizedTransaction{
			// active: old first-seen, recent activity
			tx("0xa1", "0xactive", 1.0, horizon-60*lifecycleDay, types.StatusSuccess),
			tx("0xa2", "0xactive", 1.0, horizon, types.StatusSuccess),
			// new: first seen within the last week
			tx("0xn1", "0xnew", 1.0, horizon-2*lifecycleDay, types.StatusSuccess),
			// dormant: last seen between 14 and 30 days ago
			tx("0xd1", "0xdormant", 1.0, horizon-20*lifecycleDay, types.StatusSuccess),
			// churned: last seen more than 30 days ago
			tx("0xc1", "0xchurned", 1.0, horizon-40*lifecycleDay, types.StatusSuccess),
		})

		assert.Equal(t, 1, report.LifecycleDistribution["active"])
		assert.Equal(t, 1, report.LifecycleDistribution["new"])
		assert.Equal(t, 1, report.LifecycleDistribution["dormant"])
		assert.Equal(t, 1, report.LifecycleDistribution["churned"])
		assert.Equal(t, 4, report.Summary.TotalUsers)
	})

	t.Run("classifies wallets by volume bucket", func(t *testing.T) {
		var txs []types.NormalizedTransaction
		addTxs := func(addr string, n int) {
			for i := 0; i < n; i++ {
				txs = append(txs, tx(addr+string(rune('a'+i%26))+string(rune('a'+i/26)), addr, 1.0, int64(1000+i), types.StatusSuccess))
			}
		}
		addTxs("0xheavy", 50)
		addTxs("0xregular", 10)
		addTxs("0xrepeat", 2)
		addTxs("0xonce", 1)

		report := AnalyzeUserLifecycle(txs)
		assert.Equal(t, 1, report.WalletClassification["heavy"])
		assert.Equal(t, 1, report.WalletClassification["regular"])
		assert.Equal(t, 1, report.WalletClassification["repeat"])
		assert.Equal(t, 1, report.WalletClassification["one_time"])
	})

	t.Run("activation counts users with repeat transactions", func(t *testing.T) {
		report := AnalyzeUserLifecycle([]types.NormalizedTransaction{
			tx("0xa1", "0x1", 1.0, 1000, types.StatusSuccess),
			tx("0xa2", "0x1", 1.0, 2000, types.StatusSuccess),
			tx("0xb1", "0x2", 1.0, 1500, types.StatusSuccess),
		})

		assert.Equal(t, 1, report.ActivationMetrics.ActivatedUsers)
		assert.InDelta(t, 50.0, report.ActivationMetrics.ActivationRate, 1e-9)
	})

	t.Run("retention tracks activity in the final week", func(t *testing.T) {
		horizon := int64(100) * lifecycleDay
		report := AnalyzeUserLifecycle([]types.NormalizedTransaction{
			tx("0xa1", "0xretained", 1.0, horizon-50*lifecycleDay, types.StatusSuccess),
			tx("0xa2", "0xretained", 1.0, horizon-1*lifecycleDay, types.StatusSuccess),
			tx("0xb1", "0xgone", 1.0, horizon-50*lifecycleDay, types.StatusSuccess),
		})

		assert.InDelta(t, 50.0, report.Summary.RetentionRate, 1e-9)
		require.NotEmpty(t, report.CohortAnalysis)
	})
}
