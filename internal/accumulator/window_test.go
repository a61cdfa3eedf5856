package accumulator

import (
	"testing"

	"github.com/contract-pulse/internal/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestWindowPlanner_PlanWindow(t *testing.T) {
	planner := NewWindowPlanner(0, 0)

	t.Run("first cycle reaches back by strategy base", func(t *testing.T) {
		window := planner.PlanWindow(500_000, nil, 1, types.StrategyComprehensive)
		assert.Equal(t, types.BlockWindow{FromBlock: 400_000, ToBlock: 500_000}, window)

		window = planner.PlanWindow(500_000, nil, 1, types.StrategyStandard)
		assert.Equal(t, types.BlockWindow{FromBlock: 450_000, ToBlock: 500_000}, window)
	})

	t.Run("first cycle clamps at genesis", func(t *testing.T) {
		window := planner.PlanWindow(30_000, nil, 1, types.StrategyComprehensive)
		assert.Equal(t, types.BlockWindow{FromBlock: 0, ToBlock: 30_000}, window)
	})

	t.Run("later cycles resume after the last processed block", func(t *testing.T) {
		window := planner.PlanWindow(500_000, uint64Ptr(450_000), 2, types.StrategyStandard)
		assert.Equal(t, types.BlockWindow{FromBlock: 450_001, ToBlock: 500_000}, window)
	})

	t.Run("stalled head extends backward instead", func(t *testing.T) {
		// last == head: fromBlock would be head+1, so the window flips to a
		// backward extension that grows with the cycle number
		window := planner.PlanWindow(500_000, uint64Ptr(500_000), 3, types.StrategyStandard)
		assert.Equal(t, uint64(500_000), window.ToBlock)
		assert.Equal(t, uint64(500_000-50_000-3*100), window.FromBlock)
	})

	t.Run("backward extension clamps at genesis", func(t *testing.T) {
		window := planner.PlanWindow(1_000, uint64Ptr(1_000), 5, types.StrategyComprehensive)
		assert.Equal(t, types.BlockWindow{FromBlock: 0, ToBlock: 1_000}, window)
	})

	t.Run("custom bases override the defaults", func(t *testing.T) {
		custom := NewWindowPlanner(1_000, 500)
		window := custom.PlanWindow(10_000, nil, 1, types.StrategyComprehensive)
		assert.Equal(t, types.BlockWindow{FromBlock: 9_000, ToBlock: 10_000}, window)
	})
}

func TestWindowPlanner_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	planner := NewWindowPlanner(0, 0)

	properties.Property("window is always ordered and anchored at the head", prop.ForAll(
		func(head uint64, last uint64, hasLast bool, cycle int) bool {
			var lastPtr *uint64
			if hasLast {
				lastPtr = &last
			}
			window := planner.PlanWindow(head, lastPtr, cycle, types.StrategyStandard)
			return window.FromBlock <= window.ToBlock && window.ToBlock == head
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.Bool(),
		gen.IntRange(1, 100),
	))

	properties.TestingRun(t)
}
