package accumulator

import (
	"github.com/contract-pulse/internal/types"
)

// Default first-cycle lookbacks per strategy, in blocks.
const (
	DefaultBaseRangeComprehensive uint64 = 100_000
	DefaultBaseRangeStandard      uint64 = 50_000
)

// backwardExtensionStep widens the fallback window per cycle so quiet chains
// still get useful work each iteration.
const backwardExtensionStep uint64 = 100

// WindowPlanner decides the [fromBlock, toBlock] range to fetch each cycle
type WindowPlanner struct {
	baseComprehensive uint64
	baseStandard      uint64
}

// NewWindowPlanner creates a planner with the given first-cycle lookbacks.
// Zero values fall back to the defaults.
func NewWindowPlanner(baseComprehensive, baseStandard uint64) *WindowPlanner {
	if baseComprehensive == 0 {
		baseComprehensive = DefaultBaseRangeComprehensive
	}
	if baseStandard == 0 {
		baseStandard = DefaultBaseRangeStandard
	}
	return &WindowPlanner{
		baseComprehensive: baseComprehensive,
		baseStandard:      baseStandard,
	}
}

// PlanWindow returns the block window for the given cycle.
//
// First cycle: [max(0, head-base), head]. Later cycles: [last+1, head].
// When the chain produced no new blocks since the last cycle, the window
// extends backward instead, growing with the cycle number; refetched history
// is absorbed harmlessly by the dedup store.
func (p *WindowPlanner) PlanWindow(currentHead uint64, lastProcessedBlock *uint64, cycleNumber int, strategy types.SyncStrategy) types.BlockWindow {
	base := p.baseStandard
	if strategy == types.StrategyComprehensive {
		base = p.baseComprehensive
	}

	if lastProcessedBlock == nil {
		return types.BlockWindow{
			FromBlock: clampedSub(currentHead, base),
			ToBlock:   currentHead,
		}
	}

	fromBlock := *lastProcessedBlock + 1
	if fromBlock >= currentHead {
		// No new blocks: extend backward so the cycle still does useful work
		extension := base + uint64(cycleNumber)*backwardExtensionStep
		return types.BlockWindow{
			FromBlock: clampedSub(currentHead, extension),
			ToBlock:   currentHead,
		}
	}

	return types.BlockWindow{
		FromBlock: fromBlock,
		ToBlock:   currentHead,
	}
}

// clampedSub returns a-b clamped at zero
func clampedSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
