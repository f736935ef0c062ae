package pricing

import "sync"

// ModelCost is the static price entry for one model, in USD per 1000 tokens.
type ModelCost struct {
	InputPerThousand  float64
	OutputPerThousand float64
}

// TurnCost computes the price of one request/response round trip.
func (mc ModelCost) TurnCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*mc.InputPerThousand/1000 +
		float64(outputTokens)*mc.OutputPerThousand/1000
}

// table holds per-model rates, guarded by tableMu so Register can run while
// engine goroutines look prices up. Rates drift; entries here come from the
// public price pages at the time the table was last touched.
var tableMu sync.RWMutex

var table = map[string]ModelCost{
	"gemini-1.5-flash":       {InputPerThousand: 0.000075, OutputPerThousand: 0.0003},
	"gemini-1.5-flash-8b":    {InputPerThousand: 0.0000375, OutputPerThousand: 0.00015},
	"gemini-1.5-pro":         {InputPerThousand: 0.00125, OutputPerThousand: 0.005},
	"gemini-2.0-flash":       {InputPerThousand: 0.0001, OutputPerThousand: 0.0004},
	"gemini-2.0-flash-lite":  {InputPerThousand: 0.000075, OutputPerThousand: 0.0003},
	"gpt-3.5-turbo":          {InputPerThousand: 0.0005, OutputPerThousand: 0.0015},
	"gpt-4":                  {InputPerThousand: 0.03, OutputPerThousand: 0.06},
	"gpt-4-turbo":            {InputPerThousand: 0.01, OutputPerThousand: 0.03},
	"gpt-4o":                 {InputPerThousand: 0.0025, OutputPerThousand: 0.01},
	"gpt-4o-mini":            {InputPerThousand: 0.00015, OutputPerThousand: 0.0006},
	"text-embedding-ada-002": {InputPerThousand: 0.0001},
	"text-embedding-3-small": {InputPerThousand: 0.00002},
	"text-embedding-3-large": {InputPerThousand: 0.00013},
}

// Lookup returns the price entry for a model. Unknown models default to zero
// rates so cost accrual degrades gracefully.
func Lookup(model string) ModelCost {
	tableMu.RLock()
	defer tableMu.RUnlock()
	return table[model]
}

// Register adds or overrides a price entry. Intended for callers carrying
// their own negotiated or self-hosted rates.
func Register(model string, cost ModelCost) {
	tableMu.Lock()
	defer tableMu.Unlock()
	table[model] = cost
}
