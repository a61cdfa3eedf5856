package models

import (
	"time"

	"github.com/contract-pulse/internal/types"
)

// ArchiveTransaction is an accumulated transaction as stored in the
// ClickHouse archive table
type ArchiveTransaction struct {
	AnalysisID     string        `json:"analysisId" ch:"analysis_id"`
	Chain          types.ChainID `json:"chain" ch:"chain"`
	Hash           string        `json:"hash" ch:"hash"`
	FromAddress    string        `json:"fromAddress" ch:"from_address"`
	ValueEth       float64       `json:"valueEth" ch:"value_eth"`
	GasCostEth     float64       `json:"gasCostEth" ch:"gas_cost_eth"`
	BlockNumber    uint64        `json:"blockNumber" ch:"block_number"`
	BlockTimestamp time.Time     `json:"blockTimestamp" ch:"block_timestamp"`
	Status         string        `json:"status" ch:"status"`
	FuncName       string        `json:"funcName" ch:"func_name"`
	SyncCycle      int32         `json:"syncCycle" ch:"sync_cycle"`
	AddedAt        time.Time     `json:"addedAt" ch:"added_at"`
}

// ToArchiveTransaction converts an accumulated transaction for archival
func ToArchiveTransaction(analysisID string, chain types.ChainID, tx *AccumulatedTransaction) *ArchiveTransaction {
	funcName := ""
	if tx.FuncName != nil {
		funcName = *tx.FuncName
	}
	return &ArchiveTransaction{
		AnalysisID:     analysisID,
		Chain:          chain,
		Hash:           tx.Hash,
		FromAddress:    tx.FromAddress,
		ValueEth:       tx.ValueEth,
		GasCostEth:     tx.GasCostEth,
		BlockNumber:    tx.BlockNumber,
		BlockTimestamp: time.Unix(tx.BlockTimestamp, 0).UTC(),
		Status:         string(tx.Status),
		FuncName:       funcName,
		SyncCycle:      int32(tx.SyncCycle),
		AddedAt:        tx.AddedAt,
	}
}
