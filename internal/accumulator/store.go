// Package accumulator implements the continuous contract-sync loop: a
// dedup store that absorbs repeated fetches idempotently, a window planner,
// a cycle executor, and the continuation controller driving them.
package accumulator

import (
	"fmt"
	"sort"
	"time"

	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/types"
)

// Exposed detail caps. The dedup set itself is unbounded; only the detail
// surfaced to downstream consumers is capped to the most recent entries.
const (
	recentTransactionCap = 500
	recentEventCap       = 100
)

// User classification thresholds
const (
	whaleValueEth     = 10.0
	powerUserTxCount  = 10
	activeTxCount     = 3
	eventActiveEvents = 5
)

// MergeResult reports the outcome of merging one fetch into the store
type MergeResult struct {
	Added   int
	Skipped int
	// AddedTransactions holds the records introduced by this merge, in
	// insertion order. Only populated by MergeTransactions.
	AddedTransactions []*models.AccumulatedTransaction
}

// DedupStore holds the three key-addressed collections accumulated across
// cycles: transactions by hash, events by txHash+logIndex, users by address.
// It is exclusively owned by one controller task for the lifetime of a run.
type DedupStore struct {
	chain           types.ChainID
	contractAddress string

	transactions map[string]*models.AccumulatedTransaction
	events       map[string]*models.AccumulatedEvent
	users        map[string]*models.AccumulatedUser

	txOrder    []string
	eventOrder []string
}

// NewDedupStore creates an empty store bound to one contract on one chain
func NewDedupStore(chain types.ChainID, contractAddress string) *DedupStore {
	return &DedupStore{
		chain:           chain,
		contractAddress: contractAddress,
		transactions:    make(map[string]*models.AccumulatedTransaction),
		events:          make(map[string]*models.AccumulatedEvent),
		users:           make(map[string]*models.AccumulatedUser),
	}
}

// MergeTransactions merges normalized transactions into the store.
// First write wins: a hash already present is counted as skipped, never
// overwritten.
func (s *DedupStore) MergeTransactions(incoming []types.NormalizedTransaction, cycle int) MergeResult {
	result := MergeResult{}
	now := time.Now().UTC()

	for _, tx := range incoming {
		if tx.Hash == "" {
			continue
		}
		if _, exists := s.transactions[tx.Hash]; exists {
			result.Skipped++
			continue
		}

		record := &models.AccumulatedTransaction{
			Hash:           tx.Hash,
			FromAddress:    tx.From,
			ValueEth:       tx.ValueEth,
			GasCostEth:     tx.GasCostEth,
			BlockNumber:    tx.BlockNumber,
			BlockTimestamp: tx.Timestamp,
			Status:         tx.Status,
			FuncName:       tx.FuncName,
			SyncCycle:      cycle,
			AddedAt:        now,
		}
		s.transactions[tx.Hash] = record
		s.txOrder = append(s.txOrder, tx.Hash)
		result.Added++
		result.AddedTransactions = append(result.AddedTransactions, record)
	}

	return result
}

// MergeEvents merges raw events into the store, keyed by
// transactionHash + logIndex. A missing logIndex defaults to 0.
func (s *DedupStore) MergeEvents(incoming []types.RawEvent, cycle int) MergeResult {
	result := MergeResult{}
	now := time.Now().UTC()

	for _, ev := range incoming {
		if ev.TransactionHash == "" {
			continue
		}
		var logIndex uint
		if ev.LogIndex != nil {
			logIndex = *ev.LogIndex
		}
		key := eventKey(ev.TransactionHash, logIndex)
		if _, exists := s.events[key]; exists {
			result.Skipped++
			continue
		}

		s.events[key] = &models.AccumulatedEvent{
			TransactionHash: ev.TransactionHash,
			LogIndex:        logIndex,
			Address:         ev.Address,
			EventName:       ev.EventName,
			BlockNumber:     ev.BlockNumber,
			BlockTimestamp:  ev.Timestamp,
			SyncCycle:       cycle,
			AddedAt:         now,
		}
		s.eventOrder = append(s.eventOrder, key)
		result.Added++
	}

	return result
}

func eventKey(txHash string, logIndex uint) string {
	return fmt.Sprintf("%s:%d", txHash, logIndex)
}

// DeriveUsers recomputes every user record from scratch over the entire
// accumulated transaction and event set. The full recompute is intentional:
// classification depends on global aggregates that shift as history accrues,
// and rerunning with identical inputs yields identical records.
func (s *DedupStore) DeriveUsers() []*models.AccumulatedUser {
	users := make(map[string]*models.AccumulatedUser)
	failures := make(map[string]int)
	cycles := make(map[string]map[int]struct{})

	for _, tx := range s.transactions {
		if tx.FromAddress == "" {
			continue
		}
		user, ok := users[tx.FromAddress]
		if !ok {
			user = &models.AccumulatedUser{
				Address:   tx.FromAddress,
				FirstSeen: tx.BlockTimestamp,
				LastSeen:  tx.BlockTimestamp,
			}
			users[tx.FromAddress] = user
			cycles[tx.FromAddress] = make(map[int]struct{})
		}

		user.TransactionCount++
		user.TotalValueEth += tx.ValueEth
		user.TotalGasSpentEth += tx.GasCostEth
		if tx.BlockTimestamp < user.FirstSeen {
			user.FirstSeen = tx.BlockTimestamp
		}
		if tx.BlockTimestamp > user.LastSeen {
			user.LastSeen = tx.BlockTimestamp
		}
		if tx.Status == types.StatusFailed {
			failures[tx.FromAddress]++
		}
		cycles[tx.FromAddress][tx.SyncCycle] = struct{}{}
	}

	// Events attribute to the sender of their transaction
	txSender := make(map[string]string, len(s.transactions))
	for hash, tx := range s.transactions {
		txSender[hash] = tx.FromAddress
	}
	for _, ev := range s.events {
		sender, ok := txSender[ev.TransactionHash]
		if !ok || sender == "" {
			continue
		}
		user, ok := users[sender]
		if !ok {
			continue
		}
		user.EventInteractions++
		cycles[sender][ev.SyncCycle] = struct{}{}
	}

	for address, user := range users {
		active := make([]int, 0, len(cycles[address]))
		for cycle := range cycles[address] {
			active = append(active, cycle)
		}
		sort.Ints(active)
		user.SyncCyclesActive = active
		if len(active) > 0 {
			user.LastActiveSync = active[len(active)-1]
		}

		user.LoyaltyScore = loyaltyScore(user)
		user.RiskScore = riskScore(user, failures[address])
		user.UserType = classifyUser(user)
	}

	s.users = users

	result := make([]*models.AccumulatedUser, 0, len(users))
	for _, user := range users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Address < result[j].Address })
	return result
}

// classifyUser maps aggregates to a user type. Purely a function of the
// current totals, so re-evaluation with the same inputs is idempotent.
func classifyUser(user *models.AccumulatedUser) types.UserType {
	switch {
	case user.TotalValueEth >= whaleValueEth:
		return types.UserWhale
	case user.TransactionCount >= powerUserTxCount:
		return types.UserPower
	case user.TransactionCount >= activeTxCount:
		return types.UserActive
	case user.EventInteractions >= eventActiveEvents:
		return types.UserEventActive
	default:
		return types.UserCasual
	}
}

// loyaltyScore rewards repeat activity across cycles and tenure, capped at 100
func loyaltyScore(user *models.AccumulatedUser) float64 {
	tenureDays := float64(user.LastSeen-user.FirstSeen) / 86400
	score := float64(user.TransactionCount)*4 +
		float64(len(user.SyncCyclesActive))*6 +
		tenureDays*1.5 +
		float64(user.EventInteractions)*0.5
	if score > 100 {
		score = 100
	}
	return score
}

// riskScore flags failure-heavy and burst-heavy behavior, capped at 100
func riskScore(user *models.AccumulatedUser, failures int) float64 {
	var failureRate float64
	if user.TransactionCount > 0 {
		failureRate = float64(failures) / float64(user.TransactionCount)
	}

	tenureDays := float64(user.LastSeen-user.FirstSeen) / 86400
	var burst float64
	if tenureDays < 1 && user.TransactionCount >= activeTxCount {
		// many transactions compressed into under a day
		burst = 30
	}

	score := failureRate*60 + burst
	if score > 100 {
		score = 100
	}
	return score
}

// AllTransactions returns the full accumulated set in normalized form, in
// insertion order, for the analyzers
func (s *DedupStore) AllTransactions() []types.NormalizedTransaction {
	result := make([]types.NormalizedTransaction, 0, len(s.txOrder))
	for _, hash := range s.txOrder {
		tx := s.transactions[hash]
		result = append(result, types.NormalizedTransaction{
			Hash:        tx.Hash,
			Chain:       s.chain,
			From:        tx.FromAddress,
			To:          s.contractAddress,
			ValueEth:    tx.ValueEth,
			GasCostEth:  tx.GasCostEth,
			Timestamp:   tx.BlockTimestamp,
			BlockNumber: tx.BlockNumber,
			Status:      tx.Status,
			FuncName:    tx.FuncName,
		})
	}
	return result
}

// RecentTransactions returns the most recently added transactions, capped
// for downstream consumers
func (s *DedupStore) RecentTransactions() []*models.AccumulatedTransaction {
	start := 0
	if len(s.txOrder) > recentTransactionCap {
		start = len(s.txOrder) - recentTransactionCap
	}
	result := make([]*models.AccumulatedTransaction, 0, len(s.txOrder)-start)
	for _, hash := range s.txOrder[start:] {
		result = append(result, s.transactions[hash])
	}
	return result
}

// RecentEvents returns the most recently added events, capped for downstream
// consumers
func (s *DedupStore) RecentEvents() []*models.AccumulatedEvent {
	start := 0
	if len(s.eventOrder) > recentEventCap {
		start = len(s.eventOrder) - recentEventCap
	}
	result := make([]*models.AccumulatedEvent, 0, len(s.eventOrder)-start)
	for _, key := range s.eventOrder[start:] {
		result = append(result, s.events[key])
	}
	return result
}

// TransactionCount returns the size of the accumulated transaction set
func (s *DedupStore) TransactionCount() int {
	return len(s.transactions)
}

// EventCount returns the size of the accumulated event set
func (s *DedupStore) EventCount() int {
	return len(s.events)
}

// UserCount returns the number of derived users from the last DeriveUsers call
func (s *DedupStore) UserCount() int {
	return len(s.users)
}
