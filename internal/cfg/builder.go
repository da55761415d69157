package cfg

import (
	"errors"
	"fmt"

	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/method"
)

// ErrMalformedCFG is returned for any structural defect in the
// instruction stream or try/handler table that prevents a well-formed
// control-flow graph from being built (spec §4.2 step 6, §7).
var ErrMalformedCFG = errors.New("cfg: malformed control flow")

// Build constructs the control-flow graph for a method body: addressing,
// node creation, and fallthrough/branch/switch/exception edges (spec
// §4.2). Payload pseudo-instructions (packed-switch-payload,
// sparse-switch-payload, fill-array-data-payload) are addressed but never
// become graph nodes — they are data, not control-flow points.
func Build(code *method.CodeItem) (*Graph, error) {
	type placed struct {
		instr *isa.Instruction
		addr  int
	}

	addr := 0
	byAddress := make(map[int]*isa.Instruction, len(code.Instructions))
	var real []placed
	for _, in := range code.Instructions {
		in.Address = addr
		byAddress[addr] = in
		if !isPayload(in.Op) {
			real = append(real, placed{in, addr})
		}
		addr += in.Size()
	}

	g := &Graph{RegisterCount: code.RegisterCount, AddressToIndex: make(map[int]int, len(real)+1)}
	entry := newNode(0, code.RegisterCount)
	entry.IsEntry = true
	g.Nodes = append(g.Nodes, entry)

	for i, p := range real {
		idx := i + 1
		n := newNode(idx, code.RegisterCount)
		n.Address = p.addr
		n.Instr = p.instr
		p.instr.Index = idx
		g.Nodes = append(g.Nodes, n)
		g.AddressToIndex[p.addr] = idx
	}

	excPreds := make(map[int]map[int]bool)

	for idx := 1; idx < len(g.Nodes); idx++ {
		n := g.Nodes[idx]
		meta := isa.Meta(n.Instr.Op)
		isLast := idx == len(g.Nodes)-1

		if meta.CanContinue {
			if isLast {
				return nil, fmt.Errorf("%w: fallthrough past the last instruction at %#x", ErrMalformedCFG, n.Address)
			}
			g.addEdge(idx, idx+1)
		}

		if err := addControlEdges(g, byAddress, idx, n); err != nil {
			return nil, err
		}

		if meta.CanThrow {
			for _, t := range code.Tries {
				if !t.Covers(n.Address) {
					continue
				}
				for _, h := range t.Handlers {
					hIdx, ok := g.AddressToIndex[h.Address]
					if !ok {
						return nil, fmt.Errorf("%w: handler address %#x is not an instruction boundary", ErrMalformedCFG, h.Address)
					}
					g.addEdge(idx, hIdx)
					recordExcPred(excPreds, hIdx, idx)
				}
				if t.CatchAll != nil {
					hIdx, ok := g.AddressToIndex[t.CatchAll.Address]
					if !ok {
						return nil, fmt.Errorf("%w: catch-all address %#x is not an instruction boundary", ErrMalformedCFG, t.CatchAll.Address)
					}
					g.addEdge(idx, hIdx)
					recordExcPred(excPreds, hIdx, idx)
				}
			}
		}
	}

	if len(real) > 0 {
		g.addEdge(0, 1)
	}

	if err := validateMoveException(g, excPreds); err != nil {
		return nil, err
	}

	return g, nil
}

func recordExcPred(excPreds map[int]map[int]bool, hIdx, fromIdx int) {
	set, ok := excPreds[hIdx]
	if !ok {
		set = make(map[int]bool)
		excPreds[hIdx] = set
	}
	set[fromIdx] = true
}

func addControlEdges(g *Graph, byAddress map[int]*isa.Instruction, idx int, n *Node) error {
	switch {
	case isBranchOp(n.Instr.Op):
		target := n.Address + int(n.Instr.Literal)
		targetIdx, ok := g.AddressToIndex[target]
		if !ok {
			return fmt.Errorf("%w: branch target %#x from %#x is not an instruction boundary", ErrMalformedCFG, target, n.Address)
		}
		g.addEdge(idx, targetIdx)

	case n.Instr.Op == isa.OpPackedSwitch || n.Instr.Op == isa.OpSparseSwitch:
		payloadAddr := n.Address + int(n.Instr.Literal)
		payload, ok := byAddress[payloadAddr]
		if !ok {
			return fmt.Errorf("%w: switch payload not found at %#x (from %#x)", ErrMalformedCFG, payloadAddr, n.Address)
		}
		wantPayloadOp := isa.OpPackedSwitchPayload
		if n.Instr.Op == isa.OpSparseSwitch {
			wantPayloadOp = isa.OpSparseSwitchPayload
		}
		if payload.Op != wantPayloadOp {
			return fmt.Errorf("%w: %#x does not reference a %s payload", ErrMalformedCFG, n.Address, wantPayloadOp)
		}
		for _, off := range payload.SwitchOffsets {
			target := n.Address + int(off)
			targetIdx, ok := g.AddressToIndex[target]
			if !ok {
				return fmt.Errorf("%w: switch target %#x from %#x is not an instruction boundary", ErrMalformedCFG, target, n.Address)
			}
			g.addEdge(idx, targetIdx)
		}
	}
	return nil
}

// validateMoveException enforces spec §4.2 step 6: a move-exception node
// may only be entered via an exception edge, never a fallthrough or
// branch/switch edge.
func validateMoveException(g *Graph, excPreds map[int]map[int]bool) error {
	for idx := 1; idx < len(g.Nodes); idx++ {
		n := g.Nodes[idx]
		if n.Instr.Op != isa.OpMoveException {
			continue
		}
		if len(n.Predecessors) == 0 {
			return fmt.Errorf("%w: move-exception at %#x is unreachable", ErrMalformedCFG, n.Address)
		}
		valid := excPreds[idx]
		for _, predIdx := range n.Predecessors {
			if !valid[predIdx] {
				return fmt.Errorf("%w: non-exception edge into move-exception at %#x", ErrMalformedCFG, n.Address)
			}
		}
	}
	return nil
}

func isPayload(op isa.Op) bool {
	switch op {
	case isa.OpPackedSwitchPayload, isa.OpSparseSwitchPayload, isa.OpFillArrayDataPayload:
		return true
	default:
		return false
	}
}

func isBranchOp(op isa.Op) bool {
	switch op {
	case isa.OpGoto,
		isa.OpIfEq, isa.OpIfNe, isa.OpIfLt, isa.OpIfGe, isa.OpIfGt, isa.OpIfLe,
		isa.OpIfEqz, isa.OpIfNez, isa.OpIfLtz, isa.OpIfGez, isa.OpIfGtz, isa.OpIfLez:
		return true
	default:
		return false
	}
}
