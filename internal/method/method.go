// Package method holds the external input contracts the verifier
// consumes (spec §6): the decoded method, its prototype, its code item,
// and its exception table. Producing these from a real .dex file is out
// of scope (spec §1); this package only defines the shapes, which a
// caller — the textual parser in internal/isa, or a real dex reader —
// populates.
package method

import "github.com/dexverify/dalvikverify/internal/isa"

// Instruction is a type alias so callers of this package never need to
// import internal/isa directly just to build a CodeItem.
type Instruction = isa.Instruction

// AccessFlags mirrors the small subset of Dalvik access-flag bits the
// verifier inspects (spec §6).
type AccessFlags uint32

const (
	AccStatic      AccessFlags = 0x0008
	AccConstructor AccessFlags = 0x10000
)

func (f AccessFlags) IsStatic() bool      { return f&AccStatic != 0 }
func (f AccessFlags) IsConstructor() bool { return f&AccConstructor != 0 }

// Prototype is a method's parameter and return type descriptors.
type Prototype struct {
	ReturnType            string
	Parameters            []string
	ParameterRegisterCount int
}

// Handler is one typed (or catch-all, when Type == "") catch clause.
type Handler struct {
	Type    string
	Address int
}

// TryItem is one try block: a code range and its ordered handlers.
type TryItem struct {
	StartAddress int
	EndAddress   int // exclusive
	Handlers     []Handler
	CatchAll     *Handler
}

// Covers reports whether address lies within [StartAddress, EndAddress).
func (t TryItem) Covers(address int) bool {
	return address >= t.StartAddress && address < t.EndAddress
}

// CodeItem is the decoded instruction stream and exception table for one
// method body.
type CodeItem struct {
	RegisterCount int
	Instructions  []*Instruction
	Tries         []TryItem
}

// EncodedMethod is a fully decoded method: everything the verifier needs
// to run Analyze (spec §6).
type EncodedMethod struct {
	AccessFlags     AccessFlags
	ContainingClass string // type descriptor of the declaring class
	MethodName      string
	Prototype       Prototype
	Code            *CodeItem
}

// IsInit reports whether this method is an instance initializer.
func (m *EncodedMethod) IsInit() bool {
	return m.MethodName == "<init>"
}
