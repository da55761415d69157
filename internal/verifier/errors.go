package verifier

import (
	"fmt"
	"strings"

	"github.com/dexverify/dalvikverify/internal/diagnostics"
	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

// AnalysisError is the fail-fast signal Analyze returns for a failure
// found while checking the method's instructions (spec §7): it names the
// instruction address in hex, the opcode, and (when applicable) the
// offending register, and is never a panic. Failures from building the
// CFG or from resolving the declaring class or a parameter type are
// returned as ordinary errors instead. Detail, when set, is the one-line
// register vector (diagnostics.RegisterVector) in effect at the failing
// instruction; the CLI prints it under -v, and Error() leaves it out.
type AnalysisError struct {
	Address  int
	Op       isa.Op
	Register int // -1 when the error isn't register-specific
	Message  string
	Detail   string
}

func (e *AnalysisError) Error() string {
	if e.Register >= 0 {
		return fmt.Sprintf("%#04x %s: v%d: %s", e.Address, e.Op, e.Register, e.Message)
	}
	return fmt.Sprintf("%#04x %s: %s", e.Address, e.Op, e.Message)
}

// fail builds an AnalysisError for the current instruction, register-specific.
func (ctx *Context) fail(register int, format string, args ...any) error {
	return &AnalysisError{
		Address:  ctx.Node.Address,
		Op:       ctx.Node.Instr.Op,
		Register: register,
		Message:  fmt.Sprintf(format, args...),
		Detail:   diagnostics.RegisterVector(ctx.Pre),
	}
}

// failInstr builds an AnalysisError not tied to a specific register.
func (ctx *Context) failInstr(format string, args ...any) error {
	return ctx.fail(-1, format, args...)
}

// structuralError builds an AnalysisError for a failure discovered before
// any node context exists (entry-state seeding): no address, no opcode,
// no register.
func structuralError(format string, args ...any) error {
	return &AnalysisError{Register: -1, Message: fmt.Sprintf(format, args...)}
}

// CategorySet is a compact bitset over regtype.Category, used for the
// "allowed categories" arguments to operand checks (spec §9's
// enumeration-set note).
type CategorySet uint32

// NewCategorySet builds a CategorySet from the given categories.
func NewCategorySet(cats ...regtype.Category) CategorySet {
	var s CategorySet
	for _, c := range cats {
		s |= 1 << uint(c)
	}
	return s
}

// Has reports whether c belongs to the set.
func (s CategorySet) Has(c regtype.Category) bool {
	return s&(1<<uint(c)) != 0
}

// names lists every category in the set, for error messages (spec §9:
// never ship the source's malformed diagnostic that omits this list).
func (s CategorySet) names() []string {
	var out []string
	for c := regtype.Unknown; c <= regtype.Conflict; c++ {
		if s.Has(c) {
			out = append(out, c.String())
		}
	}
	return out
}

func (s CategorySet) String() string {
	return strings.Join(s.names(), ", ")
}

// checkCategory validates that the pre-type of register r belongs to
// allowed, returning a complete, never-malformed diagnostic otherwise.
// Category Unknown — the lattice bottom for a register no predecessor
// has contributed a value for yet on this pass of the worklist — always
// passes: the worklist revisits this node once that register's real
// value propagates in, so checking it now would reject programs the
// fixed point would have accepted (spec §4.4's convergence argument).
func (ctx *Context) checkCategory(r int, allowed CategorySet) error {
	rt := ctx.Pre[r]
	if rt.Category() == regtype.Unknown {
		return nil
	}
	if !allowed.Has(rt.Category()) {
		return ctx.fail(r, "expected one of [%s], got %s", allowed, rt)
	}
	return nil
}

// checkAssignable validates that the pre-type of register r is
// assignable to dst under the lattice (spec §4.1's canBeAssignedTo). As
// with checkCategory, Unknown always passes.
func (ctx *Context) checkAssignable(r int, dst regtype.RegType) error {
	rt := ctx.Pre[r]
	if rt.Category() == regtype.Unknown {
		return nil
	}
	if !ctx.Factory.CanBeAssignedTo(ctx.Oracle, rt, dst) {
		return ctx.fail(r, "%s is not assignable to %s", rt, dst)
	}
	return nil
}

// checkReference validates that register r holds some reference value
// (Reference, Null, or UninitRef). As with checkCategory, Unknown always
// passes.
func (ctx *Context) checkReference(r int) error {
	if ctx.Pre[r].Category() == regtype.Unknown {
		return nil
	}
	if !ctx.Pre[r].IsReference() {
		return ctx.fail(r, "expected a reference, got %s", ctx.Pre[r])
	}
	return nil
}

var cat32 = NewCategorySet(regtype.One, regtype.Boolean, regtype.PosByte, regtype.Byte,
	regtype.PosShort, regtype.Short, regtype.Char, regtype.Integer, regtype.Float)

// checkIs32BitPrimitive validates that register r holds any 32-bit
// primitive category (the grouping spec §4.5 uses throughout if-*, aget,
// cmp-float, ...).
func (ctx *Context) checkIs32BitPrimitive(r int) error {
	return ctx.checkCategory(r, cat32)
}
