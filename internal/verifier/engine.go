// Package verifier implements the dataflow propagation engine (spec §4.4,
// C6) and the per-opcode-family verification rules (spec §4.5, C7) that
// run on top of the control-flow graph and register-type lattice.
package verifier

import (
	"fmt"

	"github.com/dexverify/dalvikverify/internal/cfg"
	"github.com/dexverify/dalvikverify/internal/classoracle"
	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/method"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

// Context is everything one opcode-family verify function needs: the
// node under analysis, its fully-merged pre-register state, and the
// shared collaborators (spec §6's verifier-to-oracle boundary).
type Context struct {
	Graph     *cfg.Graph
	Node      *cfg.Node
	Pre       []regtype.RegType
	Factory   *regtype.Factory
	Oracle    *classoracle.Oracle
	Method    *method.EncodedMethod
	SelfClass regtype.ClassRef
}

// Instr is a shorthand for the instruction under analysis.
func (ctx *Context) Instr() *isa.Instruction { return ctx.Node.Instr }

// regCount returns the method's register file width.
func (ctx *Context) regCount() int { return len(ctx.Pre) }

// verifyFunc performs one opcode family's type rules against ctx and
// returns the registers it explicitly writes (spec §4.3's destination
// register plus, for invoke-direct <init>, every alias of the
// constructed receiver — spec §4.4 step 3). Registers absent from the
// returned map pass their merged pre-type straight through to the
// node's post-state: that pass-through is itself part of the join
// discipline the engine enforces uniformly for every instruction.
type verifyFunc func(ctx *Context) (map[int]regtype.RegType, error)

// Analyze runs the fixed-point verifier over a single method (spec §4.4,
// §7). factory interns register types; pass the same Factory across
// methods verified against the same Oracle so that reference types built
// by one method's analysis compare equal to another's (spec §5).
func Analyze(m *method.EncodedMethod, oracle *classoracle.Oracle, factory *regtype.Factory) (*cfg.Graph, error) {
	if factory == nil {
		factory = regtype.NewFactory()
	}

	graph, err := cfg.Build(m.Code)
	if err != nil {
		return nil, err
	}

	selfClass, err := oracle.Resolve(m.ContainingClass)
	if err != nil {
		return nil, fmt.Errorf("verifier: resolving declaring class %q: %w", m.ContainingClass, err)
	}

	if m.AccessFlags.IsConstructor() && m.MethodName != "<init>" {
		return nil, structuralError("a constructor-flagged method must be named <init>")
	}

	if err := seedEntryState(graph, m, oracle, factory, selfClass); err != nil {
		return nil, err
	}

	ctx := &Context{Graph: graph, Factory: factory, Oracle: oracle, Method: m, SelfClass: selfClass}
	if err := drain(graph, ctx); err != nil {
		return nil, err
	}
	return graph, nil
}

// seedEntryState assigns the method's entry register state (spec §4.4
// step 1): every register starts Uninit, then the declared parameters
// (and, for an instance method, the receiver) are written into the
// last ParameterRegisterCount(+1) registers, Dalvik's fixed calling
// convention.
func seedEntryState(g *cfg.Graph, m *method.EncodedMethod, oracle *classoracle.Oracle, f *regtype.Factory, selfClass regtype.ClassRef) error {
	entry := g.EntryNode()
	total := g.RegisterCount
	pCount := m.Prototype.ParameterRegisterCount

	for r := 0; r < total; r++ {
		entry.OverwritePostRegisterType(r, f.Simple(regtype.Uninit))
	}

	cursor := total - pCount
	if cursor < 0 {
		return structuralError("register count %d too small for %d parameter registers", total, pCount)
	}

	if !m.AccessFlags.IsStatic() {
		thisReg := cursor - 1
		if thisReg < 0 {
			return structuralError("register count too small for the receiver")
		}
		var thisType regtype.RegType
		if m.AccessFlags.IsConstructor() {
			thisType = f.UninitRef(selfClass, -1)
		} else {
			thisType = f.Ref(regtype.Reference, selfClass)
		}
		entry.OverwritePostRegisterType(thisReg, thisType)
	}

	resolve := func(desc string) (regtype.ClassRef, error) { return oracle.Resolve(desc) }
	for _, desc := range m.Prototype.Parameters {
		rt, err := f.ForTypeDescriptor(desc, resolve)
		if err != nil {
			return fmt.Errorf("verifier: resolving parameter type %q: %w", desc, err)
		}
		if cursor >= total {
			return structuralError("declared parameters overflow the register count")
		}
		entry.OverwritePostRegisterType(cursor, rt)
		if rt.IsWideLo() {
			hi, _ := regtype.WideHighFor(rt.Category())
			if cursor+1 >= total {
				return structuralError("wide parameter at the last register has no high half")
			}
			entry.OverwritePostRegisterType(cursor+1, f.Simple(hi))
			cursor += 2
		} else {
			cursor++
		}
	}
	if cursor != total {
		return structuralError("declared parameters occupy %d registers, expected %d", cursor-(total-pCount), pCount)
	}
	return nil
}

// drain runs the ascending bitset worklist to a fixed point (spec §9's
// "a bitset over instruction indices, ascending drain, is adequate").
func drain(g *cfg.Graph, ctx *Context) error {
	pending := make([]bool, len(g.Nodes))
	count := 0
	mark := func(idx int) {
		if !pending[idx] {
			pending[idx] = true
			count++
		}
	}
	for _, s := range g.EntryNode().Successors {
		mark(s)
	}

	for count > 0 {
		idx := -1
		for i, v := range pending {
			if v {
				idx = i
				break
			}
		}
		pending[idx] = false
		count--

		changed, err := verifyNode(g, ctx, idx)
		if err != nil {
			return err
		}
		if changed {
			for _, s := range g.Nodes[idx].Successors {
				mark(s)
			}
		}
	}
	return nil
}

// verifyNode computes the merged pre-state, dispatches to the opcode
// family's rule, and writes the result back through the node's
// monotonic join (spec §4.4 steps 2-3). It returns whether any register
// of the node's post-state changed.
func verifyNode(g *cfg.Graph, base *Context, idx int) (bool, error) {
	n := g.Nodes[idx]
	regCount := g.RegisterCount

	pre := make([]regtype.RegType, regCount)
	for r := 0; r < regCount; r++ {
		pre[r] = g.MergedPreType(base.Factory, base.Oracle, n, r)
	}

	ctx := &Context{Graph: g, Node: n, Pre: pre, Factory: base.Factory, Oracle: base.Oracle, Method: base.Method, SelfClass: base.SelfClass}

	overrides, err := dispatch(ctx)
	if err != nil {
		return false, err
	}

	changed := false
	for r := 0; r < regCount; r++ {
		val, ok := overrides[r]
		if !ok {
			val = pre[r]
		}
		if n.SetPostRegisterType(base.Factory, base.Oracle, r, val) {
			changed = true
		}
	}
	return changed, nil
}

// dispatch routes one instruction to its opcode family's verify
// function, mirroring the giant opcode switch real bytecode engines use
// for execution (here, for type-checking instead).
func dispatch(ctx *Context) (map[int]regtype.RegType, error) {
	switch ctx.Instr().Op {
	case isa.OpNop:
		return nil, nil

	case isa.OpMove, isa.OpMoveObject:
		return verifyMove(ctx)
	case isa.OpMoveWide:
		return verifyMoveWide(ctx)
	case isa.OpMoveResult, isa.OpMoveResultWide, isa.OpMoveResultObject:
		return verifyMoveResult(ctx)
	case isa.OpMoveException:
		return verifyMoveException(ctx)

	case isa.OpReturnVoid, isa.OpReturn, isa.OpReturnWide, isa.OpReturnObject:
		return nil, verifyReturn(ctx)

	case isa.OpConst:
		return verifyConst(ctx)
	case isa.OpConstWide:
		return verifyConstWide(ctx)
	case isa.OpConstString:
		return verifyConstString(ctx)
	case isa.OpConstClass:
		return verifyConstClass(ctx)

	case isa.OpMonitorEnter, isa.OpMonitorExit:
		return nil, verifyMonitor(ctx)

	case isa.OpCheckCast:
		return verifyCheckCast(ctx)
	case isa.OpInstanceOf:
		return verifyInstanceOf(ctx)
	case isa.OpArrayLength:
		return verifyArrayLength(ctx)

	case isa.OpNewInstance:
		return verifyNewInstance(ctx)
	case isa.OpNewArray:
		return verifyNewArray(ctx)
	case isa.OpFilledNewArray, isa.OpFilledNewArrayRange:
		return nil, verifyFilledNewArray(ctx)
	case isa.OpFillArrayData:
		return nil, verifyFillArrayData(ctx)

	case isa.OpThrow:
		return nil, verifyThrow(ctx)
	case isa.OpGoto:
		return nil, nil
	case isa.OpPackedSwitch, isa.OpSparseSwitch:
		return nil, verifySwitch(ctx)

	case isa.OpCmplFloat, isa.OpCmpgFloat, isa.OpCmplDouble, isa.OpCmpgDouble, isa.OpCmpLong:
		return verifyCmp(ctx)

	case isa.OpIfEq, isa.OpIfNe, isa.OpIfLt, isa.OpIfGe, isa.OpIfGt, isa.OpIfLe:
		return nil, verifyIf(ctx)
	case isa.OpIfEqz, isa.OpIfNez, isa.OpIfLtz, isa.OpIfGez, isa.OpIfGtz, isa.OpIfLez:
		return nil, verifyIfz(ctx)

	case isa.OpAGet, isa.OpAGetWide, isa.OpAGetObject, isa.OpAGetBoolean, isa.OpAGetByte, isa.OpAGetChar, isa.OpAGetShort:
		return verifyAGet(ctx)
	case isa.OpAPut, isa.OpAPutWide, isa.OpAPutObject, isa.OpAPutBoolean, isa.OpAPutByte, isa.OpAPutChar, isa.OpAPutShort:
		return nil, verifyAPut(ctx)

	case isa.OpIGet, isa.OpIGetWide, isa.OpIGetObject, isa.OpIGetBoolean, isa.OpIGetByte, isa.OpIGetChar, isa.OpIGetShort:
		return verifyIGet(ctx)
	case isa.OpIPut, isa.OpIPutWide, isa.OpIPutObject, isa.OpIPutBoolean, isa.OpIPutByte, isa.OpIPutChar, isa.OpIPutShort:
		return nil, verifyIPut(ctx)

	case isa.OpSGet, isa.OpSGetWide, isa.OpSGetObject, isa.OpSGetBoolean, isa.OpSGetByte, isa.OpSGetChar, isa.OpSGetShort:
		return verifySGet(ctx)
	case isa.OpSPut, isa.OpSPutWide, isa.OpSPutObject, isa.OpSPutBoolean, isa.OpSPutByte, isa.OpSPutChar, isa.OpSPutShort:
		return nil, verifySPut(ctx)

	case isa.OpInvokeVirtual, isa.OpInvokeSuper, isa.OpInvokeDirect, isa.OpInvokeStatic, isa.OpInvokeInterface,
		isa.OpInvokeVirtualRange, isa.OpInvokeSuperRange, isa.OpInvokeDirectRange, isa.OpInvokeStaticRange, isa.OpInvokeInterfaceRange:
		return verifyInvoke(ctx)

	case isa.OpUnaryOp:
		return verifyUnaryOp(ctx)
	case isa.OpBinaryOp:
		return verifyBinaryOp(ctx)

	default:
		return nil, ctx.failInstr("unhandled opcode")
	}
}
