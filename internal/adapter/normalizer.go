package adapter

import (
	"fmt"
	"math/big"

	"github.com/contract-pulse/internal/syncerrors"
	"github.com/contract-pulse/internal/types"
)

var weiPerEth = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// NormalizeTransactions converts raw transactions to the common normalized
// format. The chain id is mandatory: normalization fails fast when it is
// absent because downstream metrics are denominated per chain.
func NormalizeTransactions(rawTxs []types.RawTransaction, chain types.ChainID) ([]types.NormalizedTransaction, error) {
	if chain == "" {
		return nil, syncerrors.NewConfigurationError("normalize", fmt.Errorf("chain id is required"))
	}

	normalized := make([]types.NormalizedTransaction, 0, len(rawTxs))
	for _, raw := range rawTxs {
		if raw.Hash == "" {
			continue
		}

		status := raw.Status
		if status == "" {
			status = types.StatusSuccess
		}

		normalized = append(normalized, types.NormalizedTransaction{
			Hash:        raw.Hash,
			Chain:       chain,
			From:        raw.From,
			To:          raw.To,
			ValueEth:    weiStringToEth(raw.Value),
			GasCostEth:  gasCostEth(raw.GasUsed, raw.GasPrice),
			Timestamp:   raw.Timestamp,
			BlockNumber: raw.BlockNumber,
			Status:      status,
			FuncName:    raw.FuncName,
		})
	}

	return normalized, nil
}

// weiStringToEth converts a decimal wei string to ETH. Malformed values
// normalize to zero rather than failing the whole batch.
func weiStringToEth(wei string) float64 {
	if wei == "" {
		return 0
	}
	value, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return 0
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(value), weiPerEth).Float64()
	return eth
}

// gasCostEth computes gasUsed * gasPrice in ETH
func gasCostEth(gasUsed, gasPrice string) float64 {
	if gasUsed == "" || gasPrice == "" {
		return 0
	}
	used, ok := new(big.Int).SetString(gasUsed, 10)
	if !ok {
		return 0
	}
	price, ok := new(big.Int).SetString(gasPrice, 10)
	if !ok {
		return 0
	}
	cost := new(big.Int).Mul(used, price)
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(cost), weiPerEth).Float64()
	return eth
}
