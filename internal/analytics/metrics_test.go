package analytics

import (
	"testing"

	"github.com/contract-pulse/internal/types"
	"github.com/stretchr/testify/assert"
)

func tx(hash, from string, value float64, ts int64, status types.TransactionStatus) types.NormalizedTransaction {
	return types.NormalizedTransaction{
		Hash:       hash,
		Chain:      types.ChainEthereum,
		From:       from,
		To:         "0xcontract",
		ValueEth:   value,
		GasCostEth: 0.001,
		Timestamp:  ts,
		Status:     status,
	}
}

func txWithFunc(hash, from, fn string, ts int64, status types.TransactionStatus) types.NormalizedTransaction {
	t := tx(hash, from, 0.1, ts, status)
	t.FuncName = &fn
	return t
}

func TestCalculateAllMetrics(t *testing.T) {
	t.Run("empty input yields zero report", func(t *testing.T) {
		report := CalculateAllMetrics(nil)
		assert.Equal(t, 0, report.Activity.TotalTransactions)
		assert.Equal(t, float64(0), report.Financial.TotalVolumeEth)
	})

	t.Run("aggregates financial and activity metrics", func(t *testing.T) {
		day := int64(86400)
		report := CalculateAllMetrics([]types.NormalizedTransaction{
			tx("0xa", "0x1", 1.0, 1000, types.StatusSuccess),
			tx("0xb", "0x1", 3.0, 1000+day, types.StatusSuccess),
			tx("0xc", "0x2", 2.0, 1000+2*day, types.StatusFailed),
		})

		assert.Equal(t, 3, report.Activity.TotalTransactions)
		assert.Equal(t, 2, report.Activity.UniqueSenders)
		assert.InDelta(t, 6.0, report.Financial.TotalVolumeEth, 1e-9)
		assert.InDelta(t, 2.0, report.Financial.AverageValueEth, 1e-9)
		assert.InDelta(t, 3.0, report.Financial.MaxValueEth, 1e-9)
		assert.InDelta(t, 2.0, report.Activity.ActiveSpanDays, 1e-9)
		assert.InDelta(t, 1.5, report.Activity.TransactionsPerDay, 1e-9)
	})

	t.Run("computes success rate from failures", func(t *testing.T) {
		report := CalculateAllMetrics([]types.NormalizedTransaction{
			tx("0xa", "0x1", 1.0, 1000, types.StatusSuccess),
			tx("0xb", "0x1", 1.0, 1001, types.StatusFailed),
			tx("0xc", "0x1", 1.0, 1002, types.StatusFailed),
			tx("0xd", "0x1", 1.0, 1003, types.StatusSuccess),
		})

		assert.Equal(t, 2, report.Performance.FailedCount)
		assert.InDelta(t, 50.0, report.Performance.SuccessRate, 1e-9)
	})

	t.Run("single timestamp counts whole set as one day", func(t *testing.T) {
		report := CalculateAllMetrics([]types.NormalizedTransaction{
			tx("0xa", "0x1", 1.0, 1000, types.StatusSuccess),
			tx("0xb", "0x2", 1.0, 1000, types.StatusSuccess),
		})
		assert.Equal(t, float64(2), report.Activity.TransactionsPerDay)
	})
}
