package llm

import (
	"strings"

	"github.com/BaSui01/promptflow/types"
)

// FallbackChain is an ordered, non-empty list of model identifiers,
// highest-capability first. It encodes the degrade-on-quota policy as
// data: the dispatcher walks the chain with an index, and the chain
// itself carries no control flow. A single chain is shared read-only
// across all tasks created from the same configuration.
type FallbackChain struct {
	models []string
}

// NewFallbackChain validates and builds a chain. An empty list, or a list
// containing blank identifiers, is a configuration error.
func NewFallbackChain(models []string) (*FallbackChain, error) {
	if len(models) == 0 {
		return nil, types.NewError(types.KindInvalidInput, "model fallback chain must not be empty")
	}
	out := make([]string, len(models))
	for i, m := range models {
		m = strings.TrimSpace(m)
		if m == "" {
			return nil, types.NewErrorf(types.KindInvalidInput, "model fallback chain entry %d is blank", i)
		}
		out[i] = m
	}
	return &FallbackChain{models: out}, nil
}

// Len returns the number of tiers in the chain.
func (c *FallbackChain) Len() int { return len(c.models) }

// At returns the model at position i.
func (c *FallbackChain) At(i int) (string, bool) {
	if i < 0 || i >= len(c.models) {
		return "", false
	}
	return c.models[i], true
}

// Next returns the model after position i, if a cheaper tier remains.
func (c *FallbackChain) Next(i int) (string, bool) {
	return c.At(i + 1)
}

// Models returns a copy of the chain for task construction.
func (c *FallbackChain) Models() []string {
	out := make([]string, len(c.models))
	copy(out, c.models)
	return out
}
