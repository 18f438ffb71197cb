package ffmpeg

import (
	"fmt"
	"strings"
)

// Param is a single filter option. An empty Key renders a positional value.
type Param struct {
	Key   string
	Value string
}

// P builds a Param from any printable value.
func P(key string, value any) Param {
	return Param{Key: key, Value: fmt.Sprint(value)}
}

// Node is one filter with explicit input and output pad labels.
type Node struct {
	Inputs  []string
	Name    string
	Params  []Param
	Outputs []string
}

// Graph is an ordered list of filter nodes joined by ';'.
type Graph struct {
	nodes []Node
}

// Add appends a node and returns the graph for chaining.
func (g *Graph) Add(node Node) *Graph {
	g.nodes = append(g.nodes, node)
	return g
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns a copy of the nodes in order.
func (g *Graph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

func (g *Graph) String() string {
	parts := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		parts = append(parts, node.String())
	}
	return strings.Join(parts, ";")
}

func (n Node) String() string {
	var b strings.Builder
	for _, in := range n.Inputs {
		b.WriteString("[" + in + "]")
	}
	b.WriteString(n.Name)
	for i, p := range n.Params {
		if i == 0 {
			b.WriteByte('=')
		} else {
			b.WriteByte(':')
		}
		if p.Key != "" {
			b.WriteString(p.Key)
			b.WriteByte('=')
		}
		b.WriteString(quoteValue(p.Value))
	}
	for _, out := range n.Outputs {
		b.WriteString("[" + out + "]")
	}
	return b.String()
}

// quoteValue leaves plain tokens bare. Anything else is escaped for the
// option parser (backslash before \, ' and :) and then single-quoted for the
// graph parser, where each quote closes the run, is emitted as \', and reopens.
func quoteValue(value string) string {
	if value != "" && isPlainToken(value) {
		return value
	}
	escaped := optionEscaper.Replace(value)
	return "'" + strings.ReplaceAll(escaped, "'", `'\''`) + "'"
}

var optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, ":", `\:`)

func isPlainToken(value string) bool {
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-', r == '/', r == '+':
		default:
			return false
		}
	}
	return true
}
