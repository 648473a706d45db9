// Package vegetation grows trees from L-system grammars. A grammar is
// expanded to a symbol string, a turtle walks the string to produce branch
// segments, and a placer decides where in a chunk trees are planted.
package vegetation

import (
	"fmt"
	"strings"
	"sync"
)

// Grammar rewrites an axiom with single-symbol rules. Expansions are
// memoized per depth, so repeated requests for a depth already reached are
// served from the memo. Safe for concurrent use.
type Grammar struct {
	axiom string
	rules map[byte]string

	mu     sync.Mutex
	depths []string
}

// NewGrammar validates that every rule key is a single symbol.
func NewGrammar(axiom string, rules map[string]string) (*Grammar, error) {
	if axiom == "" {
		return nil, fmt.Errorf("grammar: empty axiom")
	}
	g := &Grammar{
		axiom:  axiom,
		rules:  make(map[byte]string, len(rules)),
		depths: []string{axiom},
	}
	for symbol, replacement := range rules {
		if len(symbol) != 1 {
			return nil, fmt.Errorf("grammar: rule key %q must be a single symbol", symbol)
		}
		g.rules[symbol[0]] = replacement
	}
	return g, nil
}

// Axiom is the depth 0 string.
func (g *Grammar) Axiom() string {
	return g.axiom
}

// Expand returns the string after depth rewrite passes.
func (g *Grammar) Expand(depth int) string {
	if depth < 0 {
		depth = 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for len(g.depths) <= depth {
		g.depths = append(g.depths, g.rewrite(g.depths[len(g.depths)-1]))
	}
	return g.depths[depth]
}

// Memoized reports how many depths are cached, the axiom included.
func (g *Grammar) Memoized() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.depths)
}

func (g *Grammar) rewrite(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		if r, ok := g.rules[s[i]]; ok {
			b.WriteString(r)
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// symbols is everything the turtle understands. A, L, S and M are
// placeholders for rewriting and draw nothing.
const symbols = "Ff+-&^\\/|[]*ALSM"

func (g *Grammar) validate() error {
	check := func(where, s string) error {
		for i := 0; i < len(s); i++ {
			if strings.IndexByte(symbols, s[i]) < 0 {
				return fmt.Errorf("grammar: unknown symbol %q in %s", s[i], where)
			}
		}
		return nil
	}
	if err := check("axiom", g.axiom); err != nil {
		return err
	}
	for symbol, replacement := range g.rules {
		if err := check(fmt.Sprintf("rule %q", symbol), replacement); err != nil {
			return err
		}
	}
	return nil
}
