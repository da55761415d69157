// Package cfg builds and represents the per-method control-flow graph:
// the analyzed-instruction node (spec §4.3, C4) and the builder that
// wires nodes together from fallthrough, branch, switch, and exception
// edges (spec §4.2, C5).
package cfg

import (
	"golang.org/x/exp/slices"

	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

// Node is one analyzed-instruction record: a real instruction, or the
// single synthetic start-of-method node (spec §3's "dummy" node).
//
// Nodes form a cyclic graph — loops and backward branches are normal —
// so Predecessors/Successors are plain index-addressed slices into the
// owning Graph's arena, never owning references (spec §9's "cyclic-graph
// problem" note).
type Node struct {
	Index   int  // position in Graph.Nodes; also the instruction index for non-entry nodes
	Address int  // byte/code-unit address; 0 and meaningless for the entry node
	IsEntry bool // true only for the synthetic start-of-method node
	Instr   *isa.Instruction

	Predecessors []int
	Successors   []int

	postRegisterMap []regtype.RegType
}

// newNode creates a node with an all-Unknown post-register-map of the
// given width.
func newNode(index int, registerCount int) *Node {
	post := make([]regtype.RegType, registerCount)
	return &Node{Index: index, postRegisterMap: post}
}

// PostRegisterType returns the current post-state for register r. Until
// the verifier visits this node it is Unknown (the lattice bottom).
func (n *Node) PostRegisterType(r int) regtype.RegType {
	return n.postRegisterMap[r]
}

// SetsRegister reports whether this node's instruction writes register r
// (spec §4.3's setsRegister), accounting for wide destinations occupying
// r and r+1.
func (n *Node) SetsRegister(r int) bool {
	if n.IsEntry || n.Instr == nil {
		return false
	}
	if !n.Instr.SetsRegister() {
		return false
	}
	dst := n.Instr.DestinationRegister()
	if r == dst {
		return true
	}
	return n.Instr.SetsWideRegister() && r == dst+1
}

// DestinationRegister returns the register this node's instruction
// writes, or -1 if it writes none (spec §4.3's destinationRegister()).
func (n *Node) DestinationRegister() int {
	if n.IsEntry || n.Instr == nil {
		return -1
	}
	if !n.Instr.SetsRegister() {
		return -1
	}
	return n.Instr.DestinationRegister()
}

// SetPostRegisterType joins t into this node's post-state for register r,
// returning whether the post-state actually changed (spec §4.3's
// setPostRegisterType / §4.4's propagateChange step 2).
func (n *Node) SetPostRegisterType(f *regtype.Factory, h regtype.Hierarchy, r int, t regtype.RegType) bool {
	before := n.postRegisterMap[r]
	after := f.Merge(h, before, t)
	if after == before {
		return false
	}
	n.postRegisterMap[r] = after
	return true
}

// OverwritePostRegisterType replaces the post-state for register r
// unconditionally, used only by the <init> rewrite (spec §4.4 step 3,
// §9's "UninitRef rewrite" note), which is not a join — it is a forced
// downstream correction once a real allocation has been constructed.
func (n *Node) OverwritePostRegisterType(r int, t regtype.RegType) {
	n.postRegisterMap[r] = t
}

// Graph is the arena of all nodes for one method, addressed by integer
// index (spec §9's arena-of-records recommendation). Index 0 is always
// the synthetic entry node; indices 1..len(Nodes)-1 correspond, in order,
// to the non-payload Instructions (payload pseudo-instructions get no node).
type Graph struct {
	Nodes         []*Node
	RegisterCount int

	// AddressToIndex maps a code-unit address to its node index, built
	// once during addressing (spec §4.2 step 1). Sparse: not every
	// address in range has an entry, only instruction starts.
	AddressToIndex map[int]int
}

// EntryNode returns the synthetic start-of-method node.
func (g *Graph) EntryNode() *Node { return g.Nodes[0] }

// MergedPreType computes the join of postRegisterMap[r] across all of
// n's predecessors (spec §3's preRegisterMap definition, §4.3's
// mergedPreType). The entry node has no predecessors and is never asked
// for a pre-type; its post-map IS the method's entry state.
func (g *Graph) MergedPreType(f *regtype.Factory, h regtype.Hierarchy, n *Node, r int) regtype.RegType {
	result := f.Simple(regtype.Unknown)
	for _, predIdx := range n.Predecessors {
		pred := g.Nodes[predIdx]
		result = f.Merge(h, result, pred.PostRegisterType(r))
	}
	return result
}

func (g *Graph) addEdge(fromIdx, toIdx int) {
	from := g.Nodes[fromIdx]
	to := g.Nodes[toIdx]
	if slices.Contains(from.Successors, toIdx) {
		return
	}
	from.Successors = append(from.Successors, toIdx)
	to.Predecessors = append(to.Predecessors, fromIdx)
}
