package adapter

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/contract-pulse/internal/logging"
	"github.com/contract-pulse/internal/retry"
	"github.com/contract-pulse/internal/syncerrors"
	"github.com/contract-pulse/internal/types"
)

// maxLogSpan bounds a single eth_getLogs call; wide windows are chunked.
const maxLogSpan = 10_000

// EthereumAdapter implements ChainAdapter for Ethereum and EVM-compatible
// chains using go-ethereum's RPC client
type EthereumAdapter struct {
	chainID  types.ChainID
	client   *ethclient.Client
	limiter  *rate.Limiter
	retryCfg *retry.Config
}

// EthereumAdapterConfig holds configuration for creating an EthereumAdapter
type EthereumAdapterConfig struct {
	// ChainID is the chain identifier. Required.
	ChainID types.ChainID
	// RPCURL is the provider endpoint. Required.
	RPCURL string
	// RequestsPerSecond caps outgoing RPC calls. Zero disables throttling.
	RequestsPerSecond float64
	// Retry overrides the default RPC retry policy
	Retry *retry.Config
}

// NewEthereumAdapter creates a new Ethereum chain adapter
func NewEthereumAdapter(cfg *EthereumAdapterConfig) (*EthereumAdapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL cannot be empty")
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, NewAdapterError(cfg.ChainID, "NewEthereumAdapter", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	return &EthereumAdapter{
		chainID:  cfg.ChainID,
		client:   client,
		limiter:  limiter,
		retryCfg: retryCfg,
	}, nil
}

// GetChainID returns the chain identifier
func (a *EthereumAdapter) GetChainID() types.ChainID {
	return a.chainID
}

// ValidateAddress checks if address format is valid for EVM chains
func (a *EthereumAdapter) ValidateAddress(address string) bool {
	return common.IsHexAddress(address)
}

// GetCurrentBlockNumber returns the chain head block number
func (a *EthereumAdapter) GetCurrentBlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := retry.Do(ctx, a.retryCfg, func(ctx context.Context, attempt int) error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		n, err := a.client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		head = n
		return nil
	})
	if err != nil {
		return 0, syncerrors.NewProviderError("getCurrentBlockNumber",
			NewAdapterError(a.chainID, "GetCurrentBlockNumber", err))
	}
	return head, nil
}

// FetchContractInteractions retrieves transactions and events touching the
// contract within [fromBlock, toBlock]. Wide windows are chunked into
// maxLogSpan slices to stay within provider limits.
func (a *EthereumAdapter) FetchContractInteractions(ctx context.Context, address string, fromBlock, toBlock uint64) (*types.ContractInteractions, error) {
	logger := logging.FromContext(ctx)

	if fromBlock > toBlock {
		return nil, syncerrors.NewConfigurationError("fetch",
			NewAdapterError(a.chainID, "FetchContractInteractions", ErrInvalidBlockRange))
	}
	if !a.ValidateAddress(address) {
		return nil, syncerrors.NewConfigurationError("fetch",
			NewAdapterError(a.chainID, "FetchContractInteractions", fmt.Errorf("invalid contract address %q", address)))
	}

	contract := common.HexToAddress(address)
	var logs []ethtypes.Log

	for start := fromBlock; start <= toBlock; start += maxLogSpan {
		end := start + maxLogSpan - 1
		if end > toBlock {
			end = toBlock
		}

		chunk, err := a.filterLogs(ctx, contract, start, end)
		if err != nil {
			return nil, syncerrors.NewProviderError("fetch",
				NewAdapterError(a.chainID, "FetchContractInteractions", err))
		}
		logs = append(logs, chunk...)
	}

	interactions, err := a.assembleInteractions(ctx, logs)
	if err != nil {
		return nil, syncerrors.NewProviderError("fetch",
			NewAdapterError(a.chainID, "FetchContractInteractions", err))
	}

	logger.WithFields(map[string]interface{}{
		"chain":     a.chainID,
		"fromBlock": fromBlock,
		"toBlock":   toBlock,
		"txs":       interactions.Summary.TotalTransactions,
		"events":    interactions.Summary.TotalEvents,
	}).Debug("Fetched contract interactions")

	return interactions, nil
}

// filterLogs runs one bounded eth_getLogs call with rate limiting and retry
func (a *EthereumAdapter) filterLogs(ctx context.Context, contract common.Address, fromBlock, toBlock uint64) ([]ethtypes.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{contract},
	}

	var logs []ethtypes.Log
	err := retry.Do(ctx, a.retryCfg, func(ctx context.Context, attempt int) error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		result, err := a.client.FilterLogs(ctx, query)
		if err != nil {
			return err
		}
		logs = result
		return nil
	})
	return logs, err
}

// assembleInteractions resolves the transactions behind a set of logs and
// converts everything to the raw wire shapes the normalizer expects
func (a *EthereumAdapter) assembleInteractions(ctx context.Context, logs []ethtypes.Log) (*types.ContractInteractions, error) {
	interactions := &types.ContractInteractions{
		Transactions: []types.RawTransaction{},
		Events:       []types.RawEvent{},
	}

	blockTimes := make(map[uint64]int64)
	seenTx := make(map[common.Hash]struct{})

	for _, lg := range logs {
		ts, err := a.blockTimestamp(ctx, lg.BlockNumber, blockTimes)
		if err != nil {
			return nil, err
		}

		topics := make([]string, len(lg.Topics))
		for i, topic := range lg.Topics {
			topics[i] = topic.Hex()
		}

		logIndex := lg.Index
		interactions.Events = append(interactions.Events, types.RawEvent{
			TransactionHash: lg.TxHash.Hex(),
			LogIndex:        &logIndex,
			Address:         lg.Address.Hex(),
			Topics:          topics,
			Data:            "0x" + hex.EncodeToString(lg.Data),
			BlockNumber:     lg.BlockNumber,
			Timestamp:       ts,
		})

		if _, ok := seenTx[lg.TxHash]; ok {
			continue
		}
		seenTx[lg.TxHash] = struct{}{}

		rawTx, err := a.fetchTransaction(ctx, lg.TxHash, ts)
		if err != nil {
			return nil, err
		}
		interactions.Transactions = append(interactions.Transactions, *rawTx)
	}

	// Deterministic ordering helps downstream diffing and tests
	sort.Slice(interactions.Transactions, func(i, j int) bool {
		if interactions.Transactions[i].BlockNumber != interactions.Transactions[j].BlockNumber {
			return interactions.Transactions[i].BlockNumber < interactions.Transactions[j].BlockNumber
		}
		return interactions.Transactions[i].Hash < interactions.Transactions[j].Hash
	})

	interactions.Summary = types.InteractionSummary{
		TotalTransactions: len(interactions.Transactions),
		TotalEvents:       len(interactions.Events),
	}
	return interactions, nil
}

// blockTimestamp resolves a block's timestamp through a per-fetch cache
func (a *EthereumAdapter) blockTimestamp(ctx context.Context, blockNumber uint64, cache map[uint64]int64) (int64, error) {
	if ts, ok := cache[blockNumber]; ok {
		return ts, nil
	}

	var header *ethtypes.Header
	err := retry.Do(ctx, a.retryCfg, func(ctx context.Context, attempt int) error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		h, err := a.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return 0, err
	}

	ts := int64(header.Time)
	cache[blockNumber] = ts
	return ts, nil
}

// fetchTransaction resolves one transaction and its receipt into the raw shape
func (a *EthereumAdapter) fetchTransaction(ctx context.Context, hash common.Hash, blockTime int64) (*types.RawTransaction, error) {
	var tx *ethtypes.Transaction
	err := retry.Do(ctx, a.retryCfg, func(ctx context.Context, attempt int) error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		t, _, err := a.client.TransactionByHash(ctx, hash)
		if err != nil {
			return err
		}
		tx = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	var receipt *ethtypes.Receipt
	err = retry.Do(ctx, a.retryCfg, func(ctx context.Context, attempt int) error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		r, err := a.client.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender for %s: %w", hash.Hex(), err)
	}

	to := ""
	if tx.To() != nil {
		to = tx.To().Hex()
	}

	status := types.StatusSuccess
	if receipt.Status == ethtypes.ReceiptStatusFailed {
		status = types.StatusFailed
	}

	raw := &types.RawTransaction{
		Hash:        hash.Hex(),
		From:        from.Hex(),
		To:          to,
		Value:       tx.Value().String(),
		GasUsed:     new(big.Int).SetUint64(receipt.GasUsed).String(),
		GasPrice:    tx.GasPrice().String(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		Timestamp:   blockTime,
		Status:      status,
	}

	if data := tx.Data(); len(data) >= 4 {
		raw.Input = "0x" + hex.EncodeToString(data)
		selector := "0x" + hex.EncodeToString(data[:4])
		raw.FuncName = &selector
	}

	return raw, nil
}
