package verifier

import (
	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

// verifyInvoke handles every invoke-kind instruction, including the
// invoke-direct <init> rewrite (spec §4.4 step 3, §4.5): a successful
// call to <init> on an uninitialized receiver promotes every alias of
// that receiver — every register whose merged pre-type is the exact
// same interned UninitRef value — to a plain Reference of the allocated
// class, for this node's post-state only. The rewrite is entirely local
// to this node; nothing downstream needs to know an <init> call ever
// happened. A successor sees only the already-promoted Reference coming
// out of this node's post-state, so ordinary Merge joins carry it
// forward like any other register type. If some other predecessor
// reaches the same join still holding the live UninitRef — because it
// never called <init> on that allocation — Merge correctly reports a
// conflict instead of quietly picking one side.
func verifyInvoke(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	owner, err := ctx.Oracle.Resolve(in.MethodOwner)
	if err != nil {
		return nil, ctx.failInstr("resolving method owner %q: %s", in.MethodOwner, err)
	}

	regs := operandRegisters(in)
	isStatic := in.Op == isa.OpInvokeStatic || in.Op == isa.OpInvokeStaticRange
	isInit := in.MethodName == "<init>"
	isDirect := in.Op == isa.OpInvokeDirect || in.Op == isa.OpInvokeDirectRange

	cursor := 0
	var receiverReg = -1
	if !isStatic {
		if len(regs) == 0 {
			return nil, ctx.failInstr("instance invoke has no receiver register")
		}
		receiverReg = regs[0]
		cursor = 1

		receiverType := ctx.Pre[receiverReg]
		if receiverType.Category() == regtype.UninitRef && !(isInit && isDirect) {
			return nil, ctx.fail(receiverReg, "only <init> may be invoked on an uninitialized instance")
		}
		if isInit && !isDirect {
			return nil, ctx.failInstr("<init> must be called with invoke-direct")
		}
		if err := ctx.checkAssignable(receiverReg, ctx.Factory.Ref(regtype.Reference, owner)); err != nil {
			return nil, err
		}
	}

	for _, paramDesc := range in.MethodParams {
		if cursor >= len(regs) {
			return nil, ctx.failInstr("too few argument registers for declared parameters")
		}
		r := regs[cursor]
		resolve := func(d string) (regtype.ClassRef, error) { return ctx.Oracle.Resolve(d) }
		want, err := ctx.Factory.ForTypeDescriptor(paramDesc, resolve)
		if err != nil {
			return nil, ctx.failInstr("resolving parameter type %q: %s", paramDesc, err)
		}
		if err := ctx.checkAssignable(r, want); err != nil {
			return nil, err
		}
		if want.IsWideLo() {
			if err := checkWideHighHalf(ctx, r); err != nil {
				return nil, err
			}
			cursor += 2
		} else {
			cursor++
		}
	}
	if cursor != len(regs) {
		return nil, ctx.failInstr("argument registers do not match declared parameters")
	}

	if !isInit || !isDirect || isStatic {
		return nil, nil
	}

	receiverType := ctx.Pre[receiverReg]
	if receiverType.Category() == regtype.Unknown {
		return nil, nil
	}
	alloc := receiverType.UninitAlloc()
	if alloc == nil {
		return nil, ctx.fail(receiverReg, "invoke-direct <init> receiver is not an uninitialized instance")
	}
	promoted := ctx.Factory.Ref(regtype.Reference, alloc.Class)

	overrides := make(map[int]regtype.RegType)
	for r, rt := range ctx.Pre {
		if rt == receiverType {
			overrides[r] = promoted
		}
	}
	return overrides, nil
}
