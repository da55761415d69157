package verifier

import (
	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

var refOrIntCat = NewCategorySet(regtype.One, regtype.Boolean, regtype.PosByte, regtype.Byte,
	regtype.PosShort, regtype.Short, regtype.Char, regtype.Integer,
	regtype.Null, regtype.Reference, regtype.UninitRef)

// verifyReturn handles return-void/return/return-wide/return-object: the
// returned value (if any) must be assignable to the method's declared
// return type, and — for a constructor — no register anywhere may still
// hold an UninitRef, whether the receiver's own or a later allocation's
// (spec §4.5's "no uninit-ref escapes a constructor" rule, exercised by
// scenarios S2 and S7).
func verifyReturn(ctx *Context) error {
	in := ctx.Instr()
	desc := ctx.Method.Prototype.ReturnType

	switch in.Op {
	case isa.OpReturnVoid:
		if desc != "V" {
			return ctx.failInstr("return-void in a method declared to return %q", desc)
		}
	default:
		if desc == "V" {
			return ctx.failInstr("%s in a method declared void", in.Op)
		}
		resolve := func(d string) (regtype.ClassRef, error) { return ctx.Oracle.Resolve(d) }
		want, err := ctx.Factory.ForTypeDescriptor(desc, resolve)
		if err != nil {
			return ctx.failInstr("resolving declared return type %q: %s", desc, err)
		}
		if want.IsWideLo() && in.Op != isa.OpReturnWide {
			return ctx.failInstr("method returns wide type %s but instruction is %s", want, in.Op)
		}
		if !want.IsWideLo() && in.Op == isa.OpReturnWide {
			return ctx.failInstr("return-wide used for non-wide declared type %s", want)
		}
		if err := ctx.checkAssignable(in.Src1, want); err != nil {
			return err
		}
		if want.IsWideLo() {
			if err := checkWideHighHalf(ctx, in.Src1); err != nil {
				return err
			}
		}
	}

	if ctx.Method.IsInit() {
		if err := checkNoEscapingUninit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func checkNoEscapingUninit(ctx *Context) error {
	for r := 0; r < ctx.regCount(); r++ {
		rt := ctx.Pre[r]
		if rt.Category() != regtype.UninitRef {
			continue
		}
		alloc := rt.UninitAlloc()
		if alloc.Site == -1 {
			return ctx.fail(r, "constructor returns without calling this(...) or super(...)")
		}
		return ctx.fail(r, "constructor returns with an uninitialized allocation of %s still live", alloc.Class.Descriptor())
	}
	return nil
}

// verifyThrow handles throw: the thrown register must hold a reference
// assignable to java/lang/Throwable.
func verifyThrow(ctx *Context) error {
	throwable, err := ctx.Oracle.Resolve("Ljava/lang/Throwable;")
	if err != nil {
		return ctx.failInstr("resolving java/lang/Throwable: %s", err)
	}
	return ctx.checkAssignable(ctx.Instr().Src1, ctx.Factory.Ref(regtype.Reference, throwable))
}

// verifySwitch handles packed-switch/sparse-switch: the key register
// must hold a 32-bit int-like value. Target validity was already proven
// by the CFG builder.
func verifySwitch(ctx *Context) error {
	return ctx.checkCategory(ctx.Instr().Src1, intLikeCat)
}

// verifyIf handles the two-register if-* family: both operands must
// agree on domain (both numeric, or both references for eq/ne). Null,
// being also the literal 0, agrees with either domain.
func verifyIf(ctx *Context) error {
	in := ctx.Instr()
	a, b := ctx.Pre[in.Src1], ctx.Pre[in.Src2]
	if err := ctx.checkCategory(in.Src1, refOrIntCat); err != nil {
		return err
	}
	if err := ctx.checkCategory(in.Src2, refOrIntCat); err != nil {
		return err
	}
	if a.Category() == regtype.Unknown || b.Category() == regtype.Unknown {
		return nil
	}
	aNull, bNull := a.Category() == regtype.Null, b.Category() == regtype.Null
	aRef, bRef := a.IsReference() && !aNull, b.IsReference() && !bNull
	if !aNull && !bNull && aRef != bRef {
		return ctx.fail(in.Src2, "cannot compare %s with %s", a, b)
	}
	if (aRef || bRef) && in.Op != isa.OpIfEq && in.Op != isa.OpIfNe {
		return ctx.fail(in.Src1, "%s is only defined for references with if-eq/if-ne", in.Op)
	}
	return nil
}

// verifyIfz handles the compare-to-zero if-*z family.
func verifyIfz(ctx *Context) error {
	in := ctx.Instr()
	if err := ctx.checkCategory(in.Src1, refOrIntCat); err != nil {
		return err
	}
	a := ctx.Pre[in.Src1]
	if a.IsReference() && in.Op != isa.OpIfEqz && in.Op != isa.OpIfNez {
		return ctx.fail(in.Src1, "%s is only defined for references with if-eqz/if-nez", in.Op)
	}
	return nil
}
