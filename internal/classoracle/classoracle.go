// Package classoracle is a reference implementation of the verifier's
// class-hierarchy collaborator (spec §6's ClassOracle/ClassDef/
// ArrayClassDef). The real dex container format is out of scope for the
// verifier (spec §1), so this package resolves descriptors against an
// in-memory registry loaded from a YAML classpath description rather
// than a .dex or .jar file.
package classoracle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dexverify/dalvikverify/internal/regtype"
)

// ErrUnresolved indicates a descriptor has no registered class definition.
var ErrUnresolved = errors.New("classoracle: unresolved type descriptor")

// ErrMalformed indicates a descriptor does not fit the Dalvik grammar.
var ErrMalformed = errors.New("classoracle: malformed type descriptor")

// ClassDef describes one non-array class or interface. It implements
// regtype.ClassRef.
type ClassDef struct {
	descriptor      string
	isInterfaceFlag bool
	superDescriptor string // "" for java/lang/Object and for interfaces with no super
	interfaces      []string
	virtualMethods  map[string]bool

	oracle *Oracle
}

// Descriptor returns the class's type descriptor, e.g. "Ljava/lang/Object;".
func (c *ClassDef) Descriptor() string { return c.descriptor }

// IsInterface reports whether this class definition is an interface.
func (c *ClassDef) IsInterface() bool { return c.isInterfaceFlag }

// IsArray always reports false for ClassDef; arrays are ArrayClassDef.
func (c *ClassDef) IsArray() bool { return false }

// Superclass returns the immediate superclass, or nil for java/lang/Object.
func (c *ClassDef) Superclass() regtype.ClassRef {
	if c.superDescriptor == "" {
		return nil
	}
	super, err := c.oracle.Resolve(c.superDescriptor)
	if err != nil {
		return nil
	}
	return super
}

// Extends reports whether c is other, or a (possibly transitive) subclass
// of other. Interfaces are not considered in the extends chain.
func (c *ClassDef) Extends(other regtype.ClassRef) bool {
	if other == nil {
		return false
	}
	for cur := regtype.ClassRef(c); cur != nil; cur = cur.Superclass() {
		if cur.Descriptor() == other.Descriptor() {
			return true
		}
	}
	return false
}

// Implements reports whether c directly or transitively implements the
// interface other, walking both its interface list and its superclasses'.
func (c *ClassDef) Implements(other regtype.ClassRef) bool {
	if other == nil {
		return false
	}
	for cur := c; cur != nil; {
		for _, ifaceDesc := range cur.interfaces {
			iface, err := cur.oracle.Resolve(ifaceDesc)
			if err != nil {
				continue
			}
			if iface.Descriptor() == other.Descriptor() || iface.Implements(other) {
				return true
			}
		}
		super := cur.Superclass()
		if super == nil {
			break
		}
		next, ok := super.(*ClassDef)
		if !ok {
			break
		}
		cur = next
	}
	return false
}

// ImmediateElementClass is only meaningful for arrays; non-array classes
// return nil.
func (c *ClassDef) ImmediateElementClass() regtype.ClassRef { return nil }

// BaseElementClass is only meaningful for arrays; non-array classes
// return nil.
func (c *ClassDef) BaseElementClass() regtype.ClassRef { return nil }

// ArrayDimensions is always 0 for a non-array class.
func (c *ClassDef) ArrayDimensions() int { return 0 }

// HasVirtualMethod reports whether this class declares (not necessarily
// overrides) a virtual method with the given "name(params)return" signature.
func (c *ClassDef) HasVirtualMethod(signature string) bool {
	return c.virtualMethods[signature]
}

// ArrayClassDef describes an array type, synthesized on demand from a
// descriptor like "[I" or "[[Ljava/lang/String;".
type ArrayClassDef struct {
	descriptor string
	dims       int
	element    regtype.ClassRef // immediate element: one fewer '[' or the base class
	base       regtype.ClassRef // base element with all '[' stripped (nil for primitive base)
	oracle     *Oracle
}

func (a *ArrayClassDef) Descriptor() string    { return a.descriptor }
func (a *ArrayClassDef) IsInterface() bool     { return false }
func (a *ArrayClassDef) IsArray() bool         { return true }
func (a *ArrayClassDef) ArrayDimensions() int  { return a.dims }
func (a *ArrayClassDef) ImmediateElementClass() regtype.ClassRef { return a.element }
func (a *ArrayClassDef) BaseElementClass() regtype.ClassRef      { return a.base }

// Superclass for every array type is java/lang/Object, per the JLS/Dalvik
// array typing rules.
func (a *ArrayClassDef) Superclass() regtype.ClassRef {
	obj, err := a.oracle.Resolve("Ljava/lang/Object;")
	if err != nil {
		return nil
	}
	return obj
}

// Extends reports whether other is java/lang/Object or this exact array type.
func (a *ArrayClassDef) Extends(other regtype.ClassRef) bool {
	if other == nil {
		return false
	}
	if other.Descriptor() == a.descriptor {
		return true
	}
	return other.Descriptor() == "Ljava/lang/Object;"
}

// Implements reports whether other is one of the two interfaces every
// array type implements in the JVM/Dalvik type system.
func (a *ArrayClassDef) Implements(other regtype.ClassRef) bool {
	if other == nil {
		return false
	}
	switch other.Descriptor() {
	case "Ljava/lang/Cloneable;", "Ljava/io/Serializable;":
		return true
	default:
		return false
	}
}

// Oracle is the registry-backed ClassOracle: Resolve(descriptor) plus the
// Hierarchy.CommonSuperclass operation the register-type lattice needs
// for merges.
type Oracle struct {
	classes map[string]*ClassDef
}

// NewOracle creates an oracle seeded with the JDK/Dalvik ancestor classes
// every verified method implicitly depends on (java/lang/Object and
// java/lang/Throwable at minimum).
func NewOracle() *Oracle {
	o := &Oracle{classes: make(map[string]*ClassDef)}
	o.register(&ClassDef{descriptor: "Ljava/lang/Object;"})
	o.register(&ClassDef{descriptor: "Ljava/lang/Throwable;", superDescriptor: "Ljava/lang/Object;"})
	o.register(&ClassDef{descriptor: "Ljava/lang/Cloneable;", isInterfaceFlag: true})
	o.register(&ClassDef{descriptor: "Ljava/io/Serializable;", isInterfaceFlag: true})
	// String and Class back const-string/const-class directly; every
	// verified method implicitly depends on them regardless of classpath.
	o.register(&ClassDef{descriptor: "Ljava/lang/String;", superDescriptor: "Ljava/lang/Object;"})
	o.register(&ClassDef{descriptor: "Ljava/lang/Class;", superDescriptor: "Ljava/lang/Object;"})
	return o
}

func (o *Oracle) register(c *ClassDef) {
	c.oracle = o
	o.classes[c.descriptor] = c
}

// Register adds or replaces a class definition in the oracle. Intended
// for programmatic setup (tests, the CLI's YAML loader).
func (o *Oracle) Register(descriptor, super string, isInterface bool, interfaces []string, virtualMethods []string) *ClassDef {
	c := &ClassDef{
		descriptor:      descriptor,
		isInterfaceFlag: isInterface,
		superDescriptor: super,
		interfaces:      interfaces,
		virtualMethods:  make(map[string]bool, len(virtualMethods)),
	}
	for _, m := range virtualMethods {
		c.virtualMethods[m] = true
	}
	o.register(c)
	return c
}

// Resolve returns the class or array definition for a type descriptor.
func (o *Oracle) Resolve(descriptor string) (regtype.ClassRef, error) {
	if descriptor == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if descriptor[0] == '[' {
		return o.resolveArray(descriptor)
	}
	if !strings.HasPrefix(descriptor, "L") || !strings.HasSuffix(descriptor, ";") {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, descriptor)
	}
	c, ok := o.classes[descriptor]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnresolved, descriptor)
	}
	return c, nil
}

func (o *Oracle) resolveArray(descriptor string) (regtype.ClassRef, error) {
	dims := 0
	for dims < len(descriptor) && descriptor[dims] == '[' {
		dims++
	}
	if dims == 0 || dims >= len(descriptor) {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, descriptor)
	}
	baseDesc := descriptor[dims:]

	var base regtype.ClassRef
	if baseDesc[0] == 'L' {
		resolved, err := o.Resolve(baseDesc)
		if err != nil {
			return nil, err
		}
		base = resolved
	} else if !isPrimitiveDescriptor(baseDesc) {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, descriptor)
	}

	var element regtype.ClassRef
	if dims == 1 {
		element = base
	} else {
		immediate, err := o.Resolve(descriptor[1:])
		if err != nil {
			return nil, err
		}
		element = immediate
	}

	return &ArrayClassDef{descriptor: descriptor, dims: dims, element: element, base: base, oracle: o}, nil
}

func isPrimitiveDescriptor(desc string) bool {
	if len(desc) != 1 {
		return false
	}
	switch desc[0] {
	case 'Z', 'B', 'S', 'C', 'I', 'J', 'F', 'D':
		return true
	default:
		return false
	}
}

// CommonSuperclass implements regtype.Hierarchy: the most specific
// reference type both a and b satisfy (spec §4.1's Merge rule for two
// reference types).
func (o *Oracle) CommonSuperclass(a, b regtype.ClassRef) regtype.ClassRef {
	if a == nil || b == nil {
		return nil
	}
	if a.Descriptor() == b.Descriptor() {
		return a
	}
	if a.IsInterface() || b.IsInterface() {
		return o.commonSuperclassWithInterface(a, b)
	}
	if a.IsArray() || b.IsArray() {
		return o.commonSuperclassWithArray(a, b)
	}

	ancestorsOfA := map[string]regtype.ClassRef{}
	for cur := a; cur != nil; cur = cur.Superclass() {
		ancestorsOfA[cur.Descriptor()] = cur
	}
	for cur := b; cur != nil; cur = cur.Superclass() {
		if anc, ok := ancestorsOfA[cur.Descriptor()]; ok {
			return anc
		}
	}
	obj, err := o.Resolve("Ljava/lang/Object;")
	if err != nil {
		return nil
	}
	return obj
}

// commonSuperclassWithInterface handles the case where either operand is
// an interface type: the merge is the widest reference both satisfy,
// which (per spec §4.1) degrades to whichever side the other already
// implements, or java/lang/Object if neither does.
func (o *Oracle) commonSuperclassWithInterface(a, b regtype.ClassRef) regtype.ClassRef {
	if implementsOrExtends(b, a) {
		return a
	}
	if implementsOrExtends(a, b) {
		return b
	}
	obj, err := o.Resolve("Ljava/lang/Object;")
	if err != nil {
		return nil
	}
	return obj
}

func implementsOrExtends(sub, super regtype.ClassRef) bool {
	return sub.Extends(super) || sub.Implements(super)
}

func (o *Oracle) commonSuperclassWithArray(a, b regtype.ClassRef) regtype.ClassRef {
	if implementsOrExtends(b, a) {
		return a
	}
	if implementsOrExtends(a, b) {
		return b
	}
	obj, err := o.Resolve("Ljava/lang/Object;")
	if err != nil {
		return nil
	}
	return obj
}
