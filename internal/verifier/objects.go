package verifier

import "github.com/dexverify/dalvikverify/internal/regtype"

// verifyNewInstance handles new-instance: the destination becomes a
// fresh UninitRef identified by this instruction's own index as its
// allocation site (spec §4.1's UninitRef identity). Re-executing the
// same new-instance instruction — a loop back-edge — while some
// register still holds the previous allocation from this exact site is
// rejected: the prior instance was never constructed (spec §4.5, §9's
// "re-entering new-instance without calling <init>" note).
func verifyNewInstance(ctx *Context) (map[int]regtype.RegType, error) {
	cls, err := ctx.Oracle.Resolve(ctx.Instr().TypeDescriptor)
	if err != nil {
		return nil, ctx.failInstr("resolving %q: %s", ctx.Instr().TypeDescriptor, err)
	}
	if cls.IsArray() || cls.IsInterface() {
		return nil, ctx.failInstr("new-instance cannot allocate array or interface type %q", ctx.Instr().TypeDescriptor)
	}

	site := ctx.Node.Index
	for r, rt := range ctx.Pre {
		if rt.Category() != regtype.UninitRef {
			continue
		}
		if alloc := rt.UninitAlloc(); alloc != nil && alloc.Site == site {
			return nil, ctx.fail(r, "re-entering new-instance before the previous allocation at this site was constructed")
		}
	}

	return map[int]regtype.RegType{ctx.Instr().Dest: ctx.Factory.UninitRef(cls, site)}, nil
}

// verifyNewArray handles new-array: the size register must be an int,
// the type descriptor must itself be an array type, and the destination
// becomes a Reference to it.
func verifyNewArray(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	if err := ctx.checkCategory(in.Src1, intLikeCat); err != nil {
		return nil, err
	}
	cls, err := ctx.Oracle.Resolve(in.TypeDescriptor)
	if err != nil {
		return nil, ctx.failInstr("resolving %q: %s", in.TypeDescriptor, err)
	}
	if !cls.IsArray() {
		return nil, ctx.failInstr("new-array type %q is not an array type", in.TypeDescriptor)
	}
	return map[int]regtype.RegType{in.Dest: ctx.Factory.Ref(regtype.Reference, cls)}, nil
}

// verifyCheckCast handles check-cast: the operand must be a reference
// and the named type must resolve; the operand is then narrowed in place
// to that type. Whether the cast can succeed is not checked statically;
// the narrowing itself is the runtime check.
func verifyCheckCast(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	if err := ctx.checkReference(in.Src1); err != nil {
		return nil, err
	}
	cls, err := ctx.Oracle.Resolve(in.TypeDescriptor)
	if err != nil {
		return nil, ctx.failInstr("resolving %q: %s", in.TypeDescriptor, err)
	}
	return map[int]regtype.RegType{in.Src1: ctx.Factory.Ref(regtype.Reference, cls)}, nil
}

// verifyInstanceOf handles instance-of: the operand must be a reference
// (Null included, by convention always false at runtime) and the result
// is always a boolean.
func verifyInstanceOf(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	if err := ctx.checkReference(in.Src1); err != nil {
		return nil, err
	}
	if _, err := ctx.Oracle.Resolve(in.TypeDescriptor); err != nil {
		return nil, ctx.failInstr("resolving %q: %s", in.TypeDescriptor, err)
	}
	return map[int]regtype.RegType{in.Dest: ctx.Factory.Simple(regtype.Boolean)}, nil
}

// verifyArrayLength handles array-length: the operand must be an array
// reference (or Null, checked at runtime); the result is an int.
func verifyArrayLength(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	rt := ctx.Pre[in.Src1]
	switch rt.Category() {
	case regtype.Null, regtype.Unknown:
		return map[int]regtype.RegType{in.Dest: ctx.Factory.Simple(regtype.Integer)}, nil
	}
	if rt.Category() != regtype.Reference || rt.Class() == nil || !rt.Class().IsArray() {
		return nil, ctx.fail(in.Src1, "expected an array reference, got %s", rt)
	}
	return map[int]regtype.RegType{in.Dest: ctx.Factory.Simple(regtype.Integer)}, nil
}

// verifyMonitor handles monitor-enter/monitor-exit: the operand must be
// a reference. Lock balance across paths is not checked, and
// monitor-exit gets the same exception edges as any other throwing
// instruction (see SPEC_FULL.md §9).
func verifyMonitor(ctx *Context) error {
	return ctx.checkReference(ctx.Instr().Src1)
}
