package storage

import (
	"context"
	"fmt"

	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/types"
)

// TransactionArchiveRepository ships accumulated transactions to the
// ClickHouse archive table. The archive is append-only and deduplicated at
// query time by (analysis_id, hash) via the table's ReplacingMergeTree engine.
type TransactionArchiveRepository struct {
	db *ClickHouseDB
}

// NewTransactionArchiveRepository creates a new transaction archive repository
func NewTransactionArchiveRepository(db *ClickHouseDB) *TransactionArchiveRepository {
	return &TransactionArchiveRepository{db: db}
}

// ArchiveTransactions batch-inserts accumulated transactions
func (r *TransactionArchiveRepository) ArchiveTransactions(ctx context.Context, txs []*models.ArchiveTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO archive_transactions (
			analysis_id, chain, hash, from_address, value_eth, gas_cost_eth,
			block_number, block_timestamp, status, func_name, sync_cycle, added_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, tx := range txs {
		err = batch.Append(
			tx.AnalysisID,
			string(tx.Chain),
			tx.Hash,
			tx.FromAddress,
			tx.ValueEth,
			tx.GasCostEth,
			tx.BlockNumber,
			tx.BlockTimestamp,
			tx.Status,
			tx.FuncName,
			tx.SyncCycle,
			tx.AddedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append transaction %s: %w", tx.Hash, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	return nil
}

// CountByAnalysis returns the number of archived transactions for an analysis
func (r *TransactionArchiveRepository) CountByAnalysis(ctx context.Context, analysisID string) (uint64, error) {
	query := `SELECT count(DISTINCT hash) FROM archive_transactions WHERE analysis_id = ?`

	var count uint64
	if err := r.db.Conn().QueryRow(ctx, query, analysisID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count archived transactions: %w", err)
	}
	return count, nil
}

// RecentByAnalysis returns the latest archived transactions for an analysis,
// newest block first
func (r *TransactionArchiveRepository) RecentByAnalysis(ctx context.Context, analysisID string, limit int) ([]*models.ArchiveTransaction, error) {
	query := `
		SELECT analysis_id, chain, hash, from_address, value_eth, gas_cost_eth,
			   block_number, block_timestamp, status, func_name, sync_cycle, added_at
		FROM archive_transactions
		WHERE analysis_id = ?
		ORDER BY block_number DESC
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, analysisID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.ArchiveTransaction
	for rows.Next() {
		var tx models.ArchiveTransaction
		var chain string

		err := rows.Scan(
			&tx.AnalysisID,
			&chain,
			&tx.Hash,
			&tx.FromAddress,
			&tx.ValueEth,
			&tx.GasCostEth,
			&tx.BlockNumber,
			&tx.BlockTimestamp,
			&tx.Status,
			&tx.FuncName,
			&tx.SyncCycle,
			&tx.AddedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived transaction: %w", err)
		}
		tx.Chain = types.ChainID(chain)

		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived transactions: %w", err)
	}

	return txs, nil
}
