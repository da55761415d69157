// Package diagnostics formats addresses and register vectors for the CLI's
// -v output and for AnalysisError's optional detail string (spec §7). It
// has no dependency on the verifier's internals beyond the cfg/regtype
// types it prints.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/dexverify/dalvikverify/internal/cfg"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

// Addr formats a code-unit address the way real Dalvik disassembly
// listings do: zero-padded hex, no "0x" prefix.
func Addr(address int) string {
	return fmt.Sprintf("%04x", address)
}

// dumpConfig mirrors jmchacon-6502's verbose-state dumper: no pointer
// addresses, no method set, indentation matched to the surrounding
// printf'd table.
var dumpConfig = &spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableMethods:          true,
	DisableCapacities:       true,
}

// RegisterVector renders every register's type in regs, in order, as a
// single-line "v0=integer v1=reference(Foo) ..." summary.
func RegisterVector(regs []regtype.RegType) string {
	parts := make([]string, len(regs))
	for i, rt := range regs {
		parts[i] = fmt.Sprintf("v%d=%s", i, rt)
	}
	return strings.Join(parts, " ")
}

// NodeState renders one analyzed node's post-register-map for -v output:
// the address, the instruction (if any), and the full register vector.
func NodeState(g *cfg.Graph, n *cfg.Node) string {
	var b strings.Builder
	if n.IsEntry {
		fmt.Fprintf(&b, "%s  <entry>\n", Addr(n.Address))
	} else {
		fmt.Fprintf(&b, "%s  %s\n", Addr(n.Address), n.Instr.Op)
	}
	regs := make([]regtype.RegType, g.RegisterCount)
	for r := range regs {
		regs[r] = n.PostRegisterType(r)
	}
	fmt.Fprintf(&b, "  post: %s\n", RegisterVector(regs))
	return b.String()
}

// Dump pretty-prints an arbitrary decoded value (an instruction, a
// method, a register-type slice) for -v output, the way cilium-coverbee
// dumps its decoded eBPF program and jmchacon-6502 dumps CPU state.
func Dump(v any) string {
	return dumpConfig.Sdump(v)
}
