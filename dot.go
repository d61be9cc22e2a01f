package dataflow

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// WriteDot renders the graph in Graphviz DOT format. Nodes are labelled
// with their step description and edges with the child position
func (g *Graph) WriteDot(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph dataflow {")
	fmt.Fprintln(bw, "  rankdir=BT;")
	fmt.Fprintln(bw, "  node [shape=box];")

	var walk func(p *plan)
	walk = func(p *plan) {
		fmt.Fprintf(bw, "  %s [label=%s];\n", strconv.Quote(p.id), strconv.Quote(p.label))
		for i, child := range p.children {
			walk(child)
			fmt.Fprintf(bw, "  %s -> %s [label=\"%d\"];\n",
				strconv.Quote(child.id), strconv.Quote(p.id), i)
		}
	}
	walk(g.root)

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
