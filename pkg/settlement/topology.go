package settlement

import (
	"sync"

	"github.com/chainsafe/settlement-switch/pkg/config"
)

// Topology is the switch's view of configured chains and their token sets.
// It backs the calculator's fail-fast validation and is mutable through the
// admin surface.
type Topology struct {
	mu     sync.RWMutex
	chains map[string]map[string]bool // chainID -> token set
}

func NewTopology(chains []config.ChainConfig) *Topology {
	t := &Topology{chains: make(map[string]map[string]bool)}
	for _, c := range chains {
		tokens := make(map[string]bool, len(c.Tokens))
		for _, tok := range c.Tokens {
			tokens[tok] = true
		}
		t.chains[c.ID] = tokens
	}
	return t
}

func (t *Topology) ChainSupported(chainID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.chains[chainID]
	return ok
}

func (t *Topology) TokenSupported(chainID, token string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tokens, ok := t.chains[chainID]
	return ok && tokens[token]
}

// set replaces a chain's token set; an empty token list removes the chain.
func (t *Topology) set(chainID string, tokens []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(tokens) == 0 {
		delete(t.chains, chainID)
		return
	}
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	t.chains[chainID] = set
}
