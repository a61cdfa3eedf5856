package accumulator

import (
	"fmt"
	"testing"

	"github.com/contract-pulse/internal/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupStore_MergeTransactions(t *testing.T) {
	t.Run("adds new transactions", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")

		result := store.MergeTransactions([]types.NormalizedTransaction{
			normalizedTx("0xa", "0x1", 1.0, 100, 1000),
			normalizedTx("0xb", "0x2", 2.0, 101, 1010),
		}, 1)

		assert.Equal(t, 2, result.Added)
		assert.Equal(t, 0, result.Skipped)
		assert.Len(t, result.AddedTransactions, 2)
		assert.Equal(t, 2, store.TransactionCount())
	})

	t.Run("first write wins on overlapping fetches", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")

		first := []types.NormalizedTransaction{
			normalizedTx("0xa", "0x1", 1.0, 100, 1000),
			normalizedTx("0xb", "0x1", 1.0, 101, 1010),
			normalizedTx("0xc", "0x2", 1.0, 102, 1020),
			normalizedTx("0xd", "0x2", 1.0, 103, 1030),
			normalizedTx("0xe", "0x3", 1.0, 104, 1040),
		}
		result := store.MergeTransactions(first, 1)
		require.Equal(t, 5, result.Added)

		// Cycle 2 refetches the same five plus two genuinely new ones
		second := append(first,
			normalizedTx("0xf", "0x3", 1.0, 105, 1050),
			normalizedTx("0xg", "0x4", 1.0, 106, 1060),
		)
		result = store.MergeTransactions(second, 2)

		assert.Equal(t, 2, result.Added)
		assert.Equal(t, 5, result.Skipped)
		assert.Equal(t, 7, store.TransactionCount())
	})

	t.Run("records the introducing cycle, not the refetching one", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")

		store.MergeTransactions([]types.NormalizedTransaction{normalizedTx("0xa", "0x1", 1.0, 100, 1000)}, 1)
		store.MergeTransactions([]types.NormalizedTransaction{normalizedTx("0xa", "0x1", 1.0, 100, 1000)}, 2)

		all := store.AllTransactions()
		require.Len(t, all, 1)
		recent := store.RecentTransactions()
		require.Len(t, recent, 1)
		assert.Equal(t, 1, recent[0].SyncCycle)
	})

	t.Run("skips transactions without a hash", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")

		result := store.MergeTransactions([]types.NormalizedTransaction{
			{From: "0x1", ValueEth: 1.0},
		}, 1)

		assert.Equal(t, 0, result.Added)
		assert.Equal(t, 0, result.Skipped)
		assert.Equal(t, 0, store.TransactionCount())
	})
}

func TestDedupStore_MergeEvents(t *testing.T) {
	logIndex := func(i uint) *uint { return &i }

	t.Run("keys by transaction hash and log index", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")

		result := store.MergeEvents([]types.RawEvent{
			{TransactionHash: "0xa", LogIndex: logIndex(0), BlockNumber: 100},
			{TransactionHash: "0xa", LogIndex: logIndex(1), BlockNumber: 100},
			{TransactionHash: "0xb", LogIndex: logIndex(0), BlockNumber: 101},
		}, 1)

		assert.Equal(t, 3, result.Added)
		assert.Equal(t, 3, store.EventCount())
	})

	t.Run("missing log index defaults to zero", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")

		store.MergeEvents([]types.RawEvent{
			{TransactionHash: "0xa", BlockNumber: 100},
		}, 1)
		result := store.MergeEvents([]types.RawEvent{
			{TransactionHash: "0xa", LogIndex: logIndex(0), BlockNumber: 100},
		}, 2)

		assert.Equal(t, 0, result.Added)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 1, store.EventCount())
	})

	t.Run("skips events without a transaction hash", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")

		result := store.MergeEvents([]types.RawEvent{{BlockNumber: 100}}, 1)

		assert.Equal(t, 0, result.Added)
		assert.Equal(t, 0, store.EventCount())
	})
}

func TestDedupStore_DeriveUsers(t *testing.T) {
	day := int64(86400)

	t.Run("classifies by thresholds in priority order", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")

		var txs []types.NormalizedTransaction
		// whale: large total value
		txs = append(txs, normalizedTx("0xw1", "0xwhale", 11.0, 100, 1000))
		// power user: ten transactions of trivial value
		for i := 0; i < 10; i++ {
			txs = append(txs, normalizedTx(fmt.Sprintf("0xp%d", i), "0xpower", 0.01, uint64(100+i), 1000))
		}
		// active: three transactions
		for i := 0; i < 3; i++ {
			txs = append(txs, normalizedTx(fmt.Sprintf("0xa%d", i), "0xactive", 0.01, uint64(200+i), 1000))
		}
		// casual: single small transaction
		txs = append(txs, normalizedTx("0xc1", "0xcasual", 0.01, 300, 1000))
		store.MergeTransactions(txs, 1)

		users := store.DeriveUsers()
		byAddress := make(map[string]types.UserType)
		for _, u := range users {
			byAddress[u.Address] = u.UserType
		}

		assert.Equal(t, types.UserWhale, byAddress["0xwhale"])
		assert.Equal(t, types.UserPower, byAddress["0xpower"])
		assert.Equal(t, types.UserActive, byAddress["0xactive"])
		assert.Equal(t, types.UserCasual, byAddress["0xcasual"])
	})

	t.Run("event-active users need their transaction in the set", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")

		store.MergeTransactions([]types.NormalizedTransaction{
			normalizedTx("0xe1", "0xeventer", 0.01, 100, 1000),
		}, 1)

		events := make([]types.RawEvent, 5)
		for i := range events {
			idx := uint(i)
			events[i] = types.RawEvent{TransactionHash: "0xe1", LogIndex: &idx, BlockNumber: 100}
		}
		store.MergeEvents(events, 1)

		users := store.DeriveUsers()
		require.Len(t, users, 1)
		assert.Equal(t, types.UserEventActive, users[0].UserType)
		assert.Equal(t, 5, users[0].EventInteractions)
	})

	t.Run("full recompute is idempotent", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")
		store.MergeTransactions([]types.NormalizedTransaction{
			normalizedTx("0xa", "0x1", 1.0, 100, 1000),
			normalizedTx("0xb", "0x1", 2.0, 101, 1000+day),
			normalizedTx("0xc", "0x2", 0.5, 102, 1000),
		}, 1)

		first := store.DeriveUsers()
		second := store.DeriveUsers()

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].Address, second[i].Address)
			assert.Equal(t, first[i].TransactionCount, second[i].TransactionCount)
			assert.Equal(t, first[i].LoyaltyScore, second[i].LoyaltyScore)
			assert.Equal(t, first[i].RiskScore, second[i].RiskScore)
			assert.Equal(t, first[i].UserType, second[i].UserType)
		}
	})

	t.Run("tracks cycles the user was active in", func(t *testing.T) {
		store := NewDedupStore(types.ChainEthereum, "0xcontract")
		store.MergeTransactions([]types.NormalizedTransaction{
			normalizedTx("0xa", "0x1", 1.0, 100, 1000),
		}, 1)
		store.MergeTransactions([]types.NormalizedTransaction{
			normalizedTx("0xb", "0x1", 1.0, 200, 2000),
		}, 3)

		users := store.DeriveUsers()
		require.Len(t, users, 1)
		assert.Equal(t, []int{1, 3}, users[0].SyncCyclesActive)
		assert.Equal(t, 3, users[0].LastActiveSync)
	})
}

func TestDedupStore_RecentDetailCaps(t *testing.T) {
	store := NewDedupStore(types.ChainEthereum, "0xcontract")

	txs := make([]types.NormalizedTransaction, 600)
	events := make([]types.RawEvent, 150)
	for i := range txs {
		txs[i] = normalizedTx(fmt.Sprintf("0x%04d", i), "0x1", 0.01, uint64(i), int64(i))
	}
	for i := range events {
		idx := uint(i)
		events[i] = types.RawEvent{TransactionHash: "0x0000", LogIndex: &idx, BlockNumber: uint64(i)}
	}
	store.MergeTransactions(txs, 1)
	store.MergeEvents(events, 1)

	recentTxs := store.RecentTransactions()
	require.Len(t, recentTxs, 500)
	// Oldest entries fall off; the newest survive
	assert.Equal(t, "0x0100", recentTxs[0].Hash)
	assert.Equal(t, "0x0599", recentTxs[len(recentTxs)-1].Hash)

	recentEvents := store.RecentEvents()
	require.Len(t, recentEvents, 100)
	assert.Equal(t, uint(50), recentEvents[0].LogIndex)

	// Totals still reflect the whole accumulated set
	assert.Equal(t, 600, store.TransactionCount())
	assert.Equal(t, 150, store.EventCount())
}

func TestDedupStore_MergeIdempotenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("remerging a batch never grows the store", prop.ForAll(
		func(hashes []string) bool {
			store := NewDedupStore(types.ChainEthereum, "0xcontract")

			txs := make([]types.NormalizedTransaction, 0, len(hashes))
			for i, h := range hashes {
				txs = append(txs, normalizedTx("0x"+h, "0xsender", 1.0, uint64(i), int64(i)))
			}

			store.MergeTransactions(txs, 1)
			sizeAfterFirst := store.TransactionCount()

			again := store.MergeTransactions(txs, 2)
			return store.TransactionCount() == sizeAfterFirst && again.Added == 0
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
