package verifier

import (
	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

// arrayElementCategories names, per array-access opcode,
// the element categories that opcode may legally read or write. aget and
// aget-wide each cover two categories because Dalvik shares one opcode
// between same-width int/float and long/double component arrays (spec
// §4.5's array family).
var arrayElementCategories = map[isa.Op]CategorySet{
	isa.OpAGet:        NewCategorySet(regtype.Integer, regtype.Float),
	isa.OpAGetWide:    NewCategorySet(regtype.LongLo, regtype.DoubleLo),
	isa.OpAGetObject:  NewCategorySet(regtype.Reference),
	isa.OpAGetBoolean: NewCategorySet(regtype.Boolean),
	isa.OpAGetByte:    NewCategorySet(regtype.Byte),
	isa.OpAGetChar:    NewCategorySet(regtype.Char),
	isa.OpAGetShort:   NewCategorySet(regtype.Short),
	isa.OpAPut:        NewCategorySet(regtype.Integer, regtype.Float),
	isa.OpAPutWide:    NewCategorySet(regtype.LongLo, regtype.DoubleLo),
	isa.OpAPutObject:  NewCategorySet(regtype.Reference),
	isa.OpAPutBoolean: NewCategorySet(regtype.Boolean),
	isa.OpAPutByte:    NewCategorySet(regtype.Byte),
	isa.OpAPutChar:    NewCategorySet(regtype.Char),
	isa.OpAPutShort:   NewCategorySet(regtype.Short),
}

// arrayElementType computes the register type of arr's components,
// resolving the primitive/reference distinction from the array class's
// descriptor (spec §6's ArrayClassDef.ImmediateElementClass/ArrayDimensions).
func arrayElementType(ctx *Context, arr regtype.ClassRef) (regtype.RegType, error) {
	if arr.ArrayDimensions() == 0 {
		return regtype.RegType{}, ctx.failInstr("expected an array type, got %q", arr.Descriptor())
	}
	if arr.ArrayDimensions() > 1 {
		return ctx.Factory.Ref(regtype.Reference, arr.ImmediateElementClass()), nil
	}
	base := arr.Descriptor()[1:]
	switch base {
	case "Z":
		return ctx.Factory.Simple(regtype.Boolean), nil
	case "B":
		return ctx.Factory.Simple(regtype.Byte), nil
	case "S":
		return ctx.Factory.Simple(regtype.Short), nil
	case "C":
		return ctx.Factory.Simple(regtype.Char), nil
	case "I":
		return ctx.Factory.Simple(regtype.Integer), nil
	case "F":
		return ctx.Factory.Simple(regtype.Float), nil
	case "J":
		return ctx.Factory.Simple(regtype.LongLo), nil
	case "D":
		return ctx.Factory.Simple(regtype.DoubleLo), nil
	default:
		return ctx.Factory.Ref(regtype.Reference, arr.ImmediateElementClass()), nil
	}
}

// arrayOperandStatus distinguishes a resolved array class from the two
// cases that need no further element-type checking this pass: a
// statically-null operand (an error for aget, which cannot determine its
// element type; accepted by aput and fill-array-data, which throw at
// runtime) and a not-yet-converged one (never an error — see
// checkCategory's Unknown note).
type arrayOperandStatus int

const (
	arrResolved arrayOperandStatus = iota
	arrNull
	arrPending
)

func resolveArrayOperand(ctx *Context, arrReg int) (regtype.ClassRef, arrayOperandStatus, error) {
	rt := ctx.Pre[arrReg]
	switch rt.Category() {
	case regtype.Unknown:
		return nil, arrPending, nil
	case regtype.Null:
		return nil, arrNull, nil
	}
	if rt.Category() != regtype.Reference || rt.Class() == nil || !rt.Class().IsArray() {
		return nil, arrResolved, ctx.fail(arrReg, "expected an array reference, got %s", rt)
	}
	return rt.Class(), arrResolved, nil
}

// verifyAGet handles the aget family: array+index in Src1/Src2, result
// in Dest.
func verifyAGet(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	if err := ctx.checkCategory(in.Src2, intLikeCat); err != nil {
		return nil, err
	}
	arrCls, status, err := resolveArrayOperand(ctx, in.Src1)
	if err != nil {
		return nil, err
	}
	switch status {
	case arrPending:
		return map[int]regtype.RegType{in.Dest: ctx.Factory.Simple(regtype.Unknown)}, nil
	case arrNull:
		return nil, ctx.fail(in.Src1, "array operand is always null here; its element type cannot be determined")
	}
	elem, err := arrayElementType(ctx, arrCls)
	if err != nil {
		return nil, err
	}
	if !arrayElementCategories[in.Op].Has(elem.Category()) {
		return nil, ctx.fail(in.Src1, "%s on an array of %s", in.Op, elem)
	}
	overrides := map[int]regtype.RegType{in.Dest: elem}
	if elem.IsWideLo() {
		hi, _ := regtype.WideHighFor(elem.Category())
		overrides[in.Dest+1] = ctx.Factory.Simple(hi)
	}
	return overrides, nil
}

// verifyAPut handles the aput family: value in Dest (per the shared-slot
// convention), array+index in Src1/Src2.
func verifyAPut(ctx *Context) error {
	in := ctx.Instr()
	if err := ctx.checkCategory(in.Src2, intLikeCat); err != nil {
		return err
	}
	arrCls, status, err := resolveArrayOperand(ctx, in.Src1)
	if err != nil {
		return err
	}
	if status != arrResolved {
		return nil // null operand throws at runtime; pending operand is rechecked once it converges
	}
	elem, err := arrayElementType(ctx, arrCls)
	if err != nil {
		return err
	}
	if !arrayElementCategories[in.Op].Has(elem.Category()) {
		return ctx.fail(in.Src1, "%s on an array of %s", in.Op, elem)
	}
	return ctx.checkAssignable(in.Dest, elem)
}

// verifyFilledNewArray handles filled-new-array(/range): every source
// register must be assignable to the array's declared element type; the
// result (consumed by a following move-result-object) is not written
// here.
func verifyFilledNewArray(ctx *Context) error {
	in := ctx.Instr()
	cls, err := ctx.Oracle.Resolve(in.TypeDescriptor)
	if err != nil {
		return ctx.failInstr("resolving %q: %s", in.TypeDescriptor, err)
	}
	if !cls.IsArray() {
		return ctx.failInstr("filled-new-array type %q is not an array type", in.TypeDescriptor)
	}
	elem, err := arrayElementType(ctx, cls)
	if err != nil {
		return err
	}
	regs := operandRegisters(in)
	for _, r := range regs {
		if err := ctx.checkAssignable(r, elem); err != nil {
			return err
		}
	}
	return nil
}

func operandRegisters(in *isa.Instruction) []int {
	if isa.IsInvokeRange(in.Op) || in.Op == isa.OpFilledNewArrayRange {
		regs := make([]int, in.RangeCount)
		for i := range regs {
			regs[i] = in.RangeStart + i
		}
		return regs
	}
	return in.Regs
}

// verifyFillArrayData handles fill-array-data: the target register must
// be an array of a primitive whose element width matches the payload
// (exact numeric-kind matching is left to runtime, per real Dalvik,
// which only checks width here too).
func verifyFillArrayData(ctx *Context) error {
	in := ctx.Instr()
	arrCls, status, err := resolveArrayOperand(ctx, in.Src1)
	if err != nil {
		return err
	}
	if status != arrResolved {
		return nil
	}
	if arrCls.ArrayDimensions() != 1 {
		return ctx.fail(in.Src1, "fill-array-data target must be a one-dimensional primitive array")
	}
	elem, err := arrayElementType(ctx, arrCls)
	if err != nil {
		return err
	}
	if elem.Category() == regtype.Reference {
		return ctx.fail(in.Src1, "fill-array-data cannot target a reference array")
	}
	width := map[regtype.Category]int{regtype.Boolean: 1, regtype.Byte: 1, regtype.Char: 2, regtype.Short: 2,
		regtype.Integer: 4, regtype.Float: 4, regtype.LongLo: 8, regtype.DoubleLo: 8}[elem.Category()]
	payloadAddr := ctx.Node.Address + int(in.Literal)
	for _, p := range ctx.Method.Code.Instructions {
		if p.Op == isa.OpFillArrayDataPayload && p.Address == payloadAddr {
			if p.ElementWidth != width {
				return ctx.fail(in.Src1, "fill-array-data payload element width %d does not match %s elements", p.ElementWidth, elem)
			}
			return nil
		}
	}
	return ctx.failInstr("no fill-array-data payload at %#x", payloadAddr)
}
