// Package adapter provides chain-specific access to on-chain data. The
// accumulator depends only on the ChainAdapter interface; the EVM
// implementation lives alongside it.
package adapter

import (
	"context"
	"fmt"

	"github.com/contract-pulse/internal/types"
)

// ChainAdapter is the block-range data source consumed by the sync loop
type ChainAdapter interface {
	// GetCurrentBlockNumber returns the chain head block number
	GetCurrentBlockNumber(ctx context.Context) (uint64, error)

	// FetchContractInteractions retrieves transactions and events touching
	// the contract within [fromBlock, toBlock]
	FetchContractInteractions(ctx context.Context, address string, fromBlock, toBlock uint64) (*types.ContractInteractions, error)

	// ValidateAddress checks if address format is valid for this chain
	ValidateAddress(address string) bool

	// GetChainID returns the chain identifier
	GetChainID() types.ChainID
}

// Common error values for chain adapters

var (
	// ErrProviderUnavailable indicates the data provider is unavailable
	ErrProviderUnavailable = fmt.Errorf("data provider unavailable")

	// ErrInvalidBlockRange indicates an invalid block range was specified
	ErrInvalidBlockRange = fmt.Errorf("invalid block range")
)

// AdapterError wraps provider errors with chain and operation context
type AdapterError struct {
	Chain types.ChainID
	Op    string
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("chain adapter error [%s:%s]: %v", e.Chain, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(chain types.ChainID, op string, err error) *AdapterError {
	return &AdapterError{Chain: chain, Op: op, Err: err}
}
