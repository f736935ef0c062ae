package pricing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnCost(t *testing.T) {
	mc := ModelCost{InputPerThousand: 0.5, OutputPerThousand: 1.5}
	cost := mc.TurnCost(2000, 1000)
	assert.InDelta(t, 2.5, cost, 1e-9)
}

func TestLookupKnownModel(t *testing.T) {
	mc := Lookup("gpt-4o")
	assert.NotZero(t, mc.InputPerThousand)
	assert.NotZero(t, mc.OutputPerThousand)
}

func TestLookupUnknownModelIsFree(t *testing.T) {
	mc := Lookup("some-local-model")
	assert.Zero(t, mc.InputPerThousand)
	assert.Zero(t, mc.OutputPerThousand)
	assert.Zero(t, mc.TurnCost(100000, 100000))
}

func TestRegister(t *testing.T) {
	Register("test-model-registered", ModelCost{InputPerThousand: 1, OutputPerThousand: 2})
	mc := Lookup("test-model-registered")
	assert.Equal(t, 1.0, mc.InputPerThousand)
	assert.Equal(t, 2.0, mc.OutputPerThousand)
}

func TestRegisterConcurrentWithLookup(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			Register(fmt.Sprintf("concurrent-model-%d", i), ModelCost{InputPerThousand: float64(i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = Lookup("gpt-4o")
				_ = Lookup(fmt.Sprintf("concurrent-model-%d", i))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		mc := Lookup(fmt.Sprintf("concurrent-model-%d", i))
		assert.Equal(t, float64(i), mc.InputPerThousand)
	}
}

func TestEstimateTokens(t *testing.T) {
	count, err := EstimateTokens("gpt-4o", "The quick brown fox jumps over the lazy dog.")
	require.NoError(t, err)
	assert.Greater(t, count, 5)
	assert.Less(t, count, 20)
}

func TestEstimateTokensUnknownModelFallsBack(t *testing.T) {
	count, err := EstimateTokens("totally-unknown-model", "hello world")
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestEstimateTokensEmpty(t *testing.T) {
	count, err := EstimateTokens("gpt-4o", "")
	require.NoError(t, err)
	assert.Zero(t, count)
}
