package verifier

import "github.com/dexverify/dalvikverify/internal/regtype"

// verifyConst handles const: the literal's category is the most
// specific one able to hold it (spec §4.1's ForLiteral classification).
func verifyConst(ctx *Context) (map[int]regtype.RegType, error) {
	rt := ctx.Factory.ForLiteral(ctx.Instr().Literal)
	return map[int]regtype.RegType{ctx.Instr().Dest: rt}, nil
}

// verifyConstWide handles const-wide: the literal is always a long,
// regardless of magnitude (spec §4.5: no narrowing classification for
// wide constants).
func verifyConstWide(ctx *Context) (map[int]regtype.RegType, error) {
	dest := ctx.Instr().Dest
	return map[int]regtype.RegType{
		dest:     ctx.Factory.Simple(regtype.LongLo),
		dest + 1: ctx.Factory.Simple(regtype.LongHi),
	}, nil
}

// verifyConstString handles const-string: the destination always holds a
// java/lang/String reference.
func verifyConstString(ctx *Context) (map[int]regtype.RegType, error) {
	str, err := ctx.Oracle.Resolve("Ljava/lang/String;")
	if err != nil {
		return nil, ctx.failInstr("resolving java/lang/String: %s", err)
	}
	return map[int]regtype.RegType{ctx.Instr().Dest: ctx.Factory.Ref(regtype.Reference, str)}, nil
}

// verifyConstClass handles const-class: the destination always holds a
// java/lang/Class reference, regardless of which type it names (spec
// §4.5: the named type only needs to resolve, never needs to be
// assignable to anything).
func verifyConstClass(ctx *Context) (map[int]regtype.RegType, error) {
	if _, err := ctx.Oracle.Resolve(ctx.Instr().TypeDescriptor); err != nil {
		return nil, ctx.failInstr("resolving %q: %s", ctx.Instr().TypeDescriptor, err)
	}
	cls, err := ctx.Oracle.Resolve("Ljava/lang/Class;")
	if err != nil {
		return nil, ctx.failInstr("resolving java/lang/Class: %s", err)
	}
	return map[int]regtype.RegType{ctx.Instr().Dest: ctx.Factory.Ref(regtype.Reference, cls)}, nil
}
