package verifier

import (
	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

var cat32NonWide = NewCategorySet(regtype.One, regtype.Boolean, regtype.PosByte, regtype.Byte,
	regtype.PosShort, regtype.Short, regtype.Char, regtype.Integer, regtype.Float,
	regtype.Null, regtype.Reference, regtype.UninitRef)

// verifyMove handles move and move-object: the source's exact category
// carries over unchanged to the destination (spec §4.5's move family).
func verifyMove(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	if err := ctx.checkCategory(in.Src1, cat32NonWide); err != nil {
		return nil, err
	}
	return map[int]regtype.RegType{in.Dest: ctx.Pre[in.Src1]}, nil
}

// verifyMoveWide handles move-wide: both halves of the source pair must
// already agree (enforced by construction, since pairs are always
// written together), and both move as a unit.
func verifyMoveWide(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	if err := checkWideHighHalf(ctx, in.Src1); err != nil {
		return nil, err
	}
	lo := ctx.Pre[in.Src1]
	hi := ctx.Pre[in.Src1+1]
	return map[int]regtype.RegType{
		in.Dest:     lo,
		in.Dest + 1: hi,
	}, nil
}

// verifyMoveResult handles move-result/move-result-wide/move-result-object:
// it must immediately follow an invoke or filled-new-array that sets a
// result (spec §4.5's "may only follow an invoke/filled-new-array"
// invariant). The predecessor's declared return type is recovered from
// the single predecessor node; an instruction with any other number of
// predecessors is rejected.
func verifyMoveResult(ctx *Context) (map[int]regtype.RegType, error) {
	n := ctx.Node
	if len(n.Predecessors) != 1 {
		return nil, ctx.failInstr("must have exactly one predecessor, found %d", len(n.Predecessors))
	}
	predIdx := n.Predecessors[0]
	pred := ctx.Graph.Nodes[predIdx]
	if pred.IsEntry || pred.Instr == nil {
		return nil, ctx.failInstr("must follow an invoke or filled-new-array, found the method entry")
	}
	meta := isa.Meta(pred.Instr.Op)
	if !meta.SetsResult {
		return nil, ctx.failInstr("must follow an invoke or filled-new-array, found %s", pred.Instr.Op)
	}

	resultDesc := resultDescriptorOf(pred.Instr)
	rt, err := ctx.Factory.ForTypeDescriptor(resultDesc, func(d string) (regtype.ClassRef, error) { return ctx.Oracle.Resolve(d) })
	if err != nil {
		return nil, ctx.failInstr("resolving result type %q: %s", resultDesc, err)
	}

	dest := ctx.Instr().Dest
	overrides := map[int]regtype.RegType{dest: rt}
	if rt.IsWideLo() {
		hi, _ := regtype.WideHighFor(rt.Category())
		overrides[dest+1] = ctx.Factory.Simple(hi)
	}
	return overrides, nil
}

func resultDescriptorOf(in *isa.Instruction) string {
	if isa.IsInvoke(in.Op) {
		return in.MethodReturn
	}
	return in.TypeDescriptor
}

// verifyMoveException handles move-exception: the CFG builder already
// proved every predecessor of this node is an exception edge (spec
// §4.2 step 6); here we compute the caught type as the join of every
// try-table handler across the whole method whose handler address
// equals this node's address (spec §4.5's move-exception rule).
func verifyMoveException(ctx *Context) (map[int]regtype.RegType, error) {
	addr := ctx.Node.Address
	resolve := func(d string) (regtype.ClassRef, error) { return ctx.Oracle.Resolve(d) }

	caught := ctx.Factory.Simple(regtype.Unknown)
	found := false
	for _, t := range ctx.Method.Code.Tries {
		for _, h := range t.Handlers {
			if h.Address != addr {
				continue
			}
			rt, err := ctx.Factory.ForTypeDescriptor(h.Type, resolve)
			if err != nil {
				return nil, ctx.failInstr("resolving caught type %q: %s", h.Type, err)
			}
			caught = ctx.Factory.Merge(ctx.Oracle, caught, rt)
			found = true
		}
		if t.CatchAll != nil && t.CatchAll.Address == addr {
			throwable, err := ctx.Oracle.Resolve("Ljava/lang/Throwable;")
			if err != nil {
				return nil, ctx.failInstr("resolving java/lang/Throwable: %s", err)
			}
			caught = ctx.Factory.Merge(ctx.Oracle, caught, ctx.Factory.Ref(regtype.Reference, throwable))
			found = true
		}
	}
	if !found {
		return nil, ctx.failInstr("no handler in the try table targets this address")
	}
	return map[int]regtype.RegType{ctx.Instr().Dest: caught}, nil
}
