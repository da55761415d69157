package verifier

import (
	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

var wideIntPair = NewCategorySet(regtype.LongLo)
var wideFloatPair = NewCategorySet(regtype.DoubleLo)
var intLikeCat = NewCategorySet(regtype.Null, regtype.One, regtype.Boolean, regtype.PosByte, regtype.Byte,
	regtype.PosShort, regtype.Short, regtype.Char, regtype.Integer)

// floatCat accepts Integer alongside Float: a float literal's bits are
// classified by magnitude into the integer chain (ForLiteral never
// produces Float), so any genuinely float-typed operand coming straight
// from a const still has an integer-chain category at this point.
var floatCat = NewCategorySet(regtype.Integer, regtype.Float)

// verifyCmp handles cmpl-float/cmpg-float/cmpl-double/cmpg-double/cmp-long:
// two equal-width operands of the expected numeric domain produce a
// plain int result (spec §4.5's comparison family).
func verifyCmp(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	var wide bool
	var allowed CategorySet
	switch in.Op {
	case isa.OpCmplFloat, isa.OpCmpgFloat:
		allowed, wide = floatCat, false
	case isa.OpCmplDouble, isa.OpCmpgDouble:
		allowed, wide = wideFloatPair, true
	case isa.OpCmpLong:
		allowed, wide = wideIntPair, true
	}
	if err := ctx.checkCategory(in.Src1, allowed); err != nil {
		return nil, err
	}
	if err := ctx.checkCategory(in.Src2, allowed); err != nil {
		return nil, err
	}
	if wide {
		if err := checkWideHighHalf(ctx, in.Src1); err != nil {
			return nil, err
		}
		if err := checkWideHighHalf(ctx, in.Src2); err != nil {
			return nil, err
		}
	}
	return map[int]regtype.RegType{in.Dest: ctx.Factory.Simple(regtype.Integer)}, nil
}

// checkWideHighHalf validates that register lo+1 completes the wide
// pair started at lo. Unknown (not yet converged) always passes, at
// either half, for the same reason checkCategory does.
func checkWideHighHalf(ctx *Context, lo int) error {
	loType := ctx.Pre[lo]
	if loType.Category() == regtype.Unknown {
		return nil
	}
	hiCat, err := regtype.WideHighFor(loType.Category())
	if err != nil {
		return ctx.fail(lo, "%s", err)
	}
	hi := ctx.Pre[lo+1]
	if hi.Category() != hiCat && hi.Category() != regtype.Unknown {
		return ctx.fail(lo+1, "expected %s to complete the wide pair, got %s", hiCat, hi)
	}
	return nil
}

// verifyUnaryOp handles neg-*, not-*, and the numeric conversion family,
// collapsed to one generic instruction parameterized by ArithKind and
// Width (spec §6's note on skipping byte-encoding-only opcode variants).
func verifyUnaryOp(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	srcWidth := in.Width
	if in.Arith == isa.ArithConvert {
		srcWidth = in.SrcWidth
	}
	if err := checkOperandWidth(ctx, in.Src1, srcWidth); err != nil {
		return nil, err
	}
	return writeWidthResult(ctx, in.Dest, in.Width), nil
}

// verifyBinaryOp handles add/sub/mul/div/rem/and/or/xor/shl/shr/ushr,
// both register-register and register-literal forms (spec §6's note).
func verifyBinaryOp(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	if err := checkOperandWidth(ctx, in.Src1, in.Width); err != nil {
		return nil, err
	}
	if !in.HasLiteralOperand {
		if err := checkOperandWidth(ctx, in.Src2, in.Width); err != nil {
			return nil, err
		}
	}
	return writeWidthResult(ctx, in.Dest, in.Width), nil
}

func checkOperandWidth(ctx *Context, r int, w isa.Width) error {
	switch w {
	case isa.WidthInt32:
		return ctx.checkCategory(r, intLikeCat)
	case isa.WidthFloat32:
		return ctx.checkCategory(r, floatCat)
	case isa.WidthInt64:
		if err := ctx.checkCategory(r, wideIntPair); err != nil {
			return err
		}
		return checkWideHighHalf(ctx, r)
	case isa.WidthFloat64:
		if err := ctx.checkCategory(r, wideFloatPair); err != nil {
			return err
		}
		return checkWideHighHalf(ctx, r)
	default:
		return ctx.fail(r, "unrecognized arithmetic operand width %q", w)
	}
}

func writeWidthResult(ctx *Context, dest int, w isa.Width) map[int]regtype.RegType {
	switch w {
	case isa.WidthInt32:
		return map[int]regtype.RegType{dest: ctx.Factory.Simple(regtype.Integer)}
	case isa.WidthFloat32:
		return map[int]regtype.RegType{dest: ctx.Factory.Simple(regtype.Float)}
	case isa.WidthInt64:
		return map[int]regtype.RegType{dest: ctx.Factory.Simple(regtype.LongLo), dest + 1: ctx.Factory.Simple(regtype.LongHi)}
	case isa.WidthFloat64:
		return map[int]regtype.RegType{dest: ctx.Factory.Simple(regtype.DoubleLo), dest + 1: ctx.Factory.Simple(regtype.DoubleHi)}
	default:
		return map[int]regtype.RegType{dest: ctx.Factory.Simple(regtype.Conflict)}
	}
}
