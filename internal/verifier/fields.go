package verifier

import (
	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

var fieldCategories = map[isa.Op]CategorySet{
	isa.OpIGet:        NewCategorySet(regtype.Integer, regtype.Float),
	isa.OpIGetWide:    NewCategorySet(regtype.LongLo, regtype.DoubleLo),
	isa.OpIGetObject:  NewCategorySet(regtype.Reference),
	isa.OpIGetBoolean: NewCategorySet(regtype.Boolean),
	isa.OpIGetByte:    NewCategorySet(regtype.Byte),
	isa.OpIGetChar:    NewCategorySet(regtype.Char),
	isa.OpIGetShort:   NewCategorySet(regtype.Short),
	isa.OpIPut:        NewCategorySet(regtype.Integer, regtype.Float),
	isa.OpIPutWide:    NewCategorySet(regtype.LongLo, regtype.DoubleLo),
	isa.OpIPutObject:  NewCategorySet(regtype.Reference),
	isa.OpIPutBoolean: NewCategorySet(regtype.Boolean),
	isa.OpIPutByte:    NewCategorySet(regtype.Byte),
	isa.OpIPutChar:    NewCategorySet(regtype.Char),
	isa.OpIPutShort:   NewCategorySet(regtype.Short),
	isa.OpSGet:        NewCategorySet(regtype.Integer, regtype.Float),
	isa.OpSGetWide:    NewCategorySet(regtype.LongLo, regtype.DoubleLo),
	isa.OpSGetObject:  NewCategorySet(regtype.Reference),
	isa.OpSGetBoolean: NewCategorySet(regtype.Boolean),
	isa.OpSGetByte:    NewCategorySet(regtype.Byte),
	isa.OpSGetChar:    NewCategorySet(regtype.Char),
	isa.OpSGetShort:   NewCategorySet(regtype.Short),
	isa.OpSPut:        NewCategorySet(regtype.Integer, regtype.Float),
	isa.OpSPutWide:    NewCategorySet(regtype.LongLo, regtype.DoubleLo),
	isa.OpSPutObject:  NewCategorySet(regtype.Reference),
	isa.OpSPutBoolean: NewCategorySet(regtype.Boolean),
	isa.OpSPutByte:    NewCategorySet(regtype.Byte),
	isa.OpSPutChar:    NewCategorySet(regtype.Char),
	isa.OpSPutShort:   NewCategorySet(regtype.Short),
}

// fieldType resolves an i/sget/i/sput instruction's declared field type
// (spec §6: field *existence* on the owner is not modeled — only that
// the owner and field type descriptors resolve — since the oracle tracks
// classes, not field tables).
func fieldType(ctx *Context) (regtype.RegType, error) {
	in := ctx.Instr()
	if _, err := ctx.Oracle.Resolve(in.FieldOwner); err != nil {
		return regtype.RegType{}, ctx.failInstr("resolving field owner %q: %s", in.FieldOwner, err)
	}
	resolve := func(d string) (regtype.ClassRef, error) { return ctx.Oracle.Resolve(d) }
	rt, err := ctx.Factory.ForTypeDescriptor(in.FieldType, resolve)
	if err != nil {
		return regtype.RegType{}, ctx.failInstr("resolving field type %q: %s", in.FieldType, err)
	}
	if !fieldCategories[in.Op].Has(rt.Category()) {
		return regtype.RegType{}, ctx.failInstr("%s does not match declared field type %s", in.Op, rt)
	}
	return rt, nil
}

// verifyIGet handles the iget family: object in Src1, result in Dest.
func verifyIGet(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	ft, err := fieldType(ctx)
	if err != nil {
		return nil, err
	}
	owner, err := ctx.Oracle.Resolve(in.FieldOwner)
	if err != nil {
		return nil, ctx.failInstr("resolving field owner %q: %s", in.FieldOwner, err)
	}
	if err := ctx.checkAssignable(in.Src1, ctx.Factory.Ref(regtype.Reference, owner)); err != nil {
		return nil, err
	}
	overrides := map[int]regtype.RegType{in.Dest: ft}
	if ft.IsWideLo() {
		hi, _ := regtype.WideHighFor(ft.Category())
		overrides[in.Dest+1] = ctx.Factory.Simple(hi)
	}
	return overrides, nil
}

// verifyIPut handles the iput family: value in Dest, object in Src1.
func verifyIPut(ctx *Context) error {
	in := ctx.Instr()
	ft, err := fieldType(ctx)
	if err != nil {
		return err
	}
	owner, err := ctx.Oracle.Resolve(in.FieldOwner)
	if err != nil {
		return ctx.failInstr("resolving field owner %q: %s", in.FieldOwner, err)
	}
	if err := ctx.checkAssignable(in.Src1, ctx.Factory.Ref(regtype.Reference, owner)); err != nil {
		return err
	}
	return ctx.checkAssignable(in.Dest, ft)
}

// verifySGet handles the sget family: no object operand, result in Dest.
func verifySGet(ctx *Context) (map[int]regtype.RegType, error) {
	in := ctx.Instr()
	ft, err := fieldType(ctx)
	if err != nil {
		return nil, err
	}
	overrides := map[int]regtype.RegType{in.Dest: ft}
	if ft.IsWideLo() {
		hi, _ := regtype.WideHighFor(ft.Category())
		overrides[in.Dest+1] = ctx.Factory.Simple(hi)
	}
	return overrides, nil
}

// verifySPut handles the sput family: value in Dest, no object operand.
func verifySPut(ctx *Context) error {
	in := ctx.Instr()
	ft, err := fieldType(ctx)
	if err != nil {
		return err
	}
	return ctx.checkAssignable(in.Dest, ft)
}
