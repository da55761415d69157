package regtype

import "testing"

type fakeClass struct {
	descriptor string
	super      *fakeClass
	iface      bool
}

func (c *fakeClass) Descriptor() string   { return c.descriptor }
func (c *fakeClass) IsInterface() bool    { return c.iface }
func (c *fakeClass) IsArray() bool        { return false }
func (c *fakeClass) ArrayDimensions() int { return 0 }
func (c *fakeClass) ImmediateElementClass() ClassRef { return nil }
func (c *fakeClass) BaseElementClass() ClassRef      { return nil }
func (c *fakeClass) Superclass() ClassRef {
	if c.super == nil {
		return nil
	}
	return c.super
}
func (c *fakeClass) Extends(other ClassRef) bool {
	for s := c.Superclass(); s != nil; s = s.Superclass() {
		if s.Descriptor() == other.Descriptor() {
			return true
		}
	}
	return false
}
func (c *fakeClass) Implements(other ClassRef) bool { return false }

// fakeHierarchy walks fakeClass superclass chains to find a common
// ancestor, standing in for classoracle.Oracle's real algorithm.
type fakeHierarchy struct{}

func (fakeHierarchy) CommonSuperclass(a, b ClassRef) ClassRef {
	if a == nil || b == nil {
		return nil
	}
	seen := map[string]bool{a.Descriptor(): true}
	for s := a.Superclass(); s != nil; s = s.Superclass() {
		seen[s.Descriptor()] = true
	}
	if seen[b.Descriptor()] {
		return b
	}
	for s := b.Superclass(); s != nil; s = s.Superclass() {
		if seen[s.Descriptor()] {
			return s
		}
	}
	return nil
}

var object = &fakeClass{descriptor: "Ljava/lang/Object;"}

func TestForLiteralClassification(t *testing.T) {
	f := NewFactory()
	cases := []struct {
		v    int64
		want Category
	}{
		{0, Null}, {1, One}, {2, PosByte}, {-1, Byte},
		{200, PosShort}, {-200, Short}, {40000, Char}, {1 << 20, Integer},
	}
	for _, c := range cases {
		if got := f.ForLiteral(c.v).Category(); got != c.want {
			t.Errorf("ForLiteral(%d) = %s, want %s", c.v, got, c.want)
		}
	}
}

func TestFactoryInterning(t *testing.T) {
	f := NewFactory()
	a := f.Simple(Integer)
	b := f.Simple(Integer)
	if a != b {
		t.Error("Simple(Integer) should be interned to the identical value")
	}

	r1 := f.Ref(Reference, object)
	r2 := f.Ref(Reference, object)
	if r1 != r2 {
		t.Error("Ref(Reference, object) should be interned to the identical value")
	}

	u1 := f.UninitRef(object, 3)
	u2 := f.UninitRef(object, 3)
	u3 := f.UninitRef(object, 4)
	if u1 != u2 {
		t.Error("UninitRef at the same site should be interned to the identical value")
	}
	if u1 == u3 {
		t.Error("UninitRef at different sites must be distinct registers")
	}
}

func TestMergeUnknownIsIdentity(t *testing.T) {
	f := NewFactory()
	i := f.Simple(Integer)
	if got := f.Merge(fakeHierarchy{}, f.Simple(Unknown), i); got != i {
		t.Errorf("Merge(Unknown, Integer) = %s, want Integer", got)
	}
	if got := f.Merge(fakeHierarchy{}, i, f.Simple(Unknown)); got != i {
		t.Errorf("Merge(Integer, Unknown) = %s, want Integer", got)
	}
}

func TestMergeNumericChainPicksWider(t *testing.T) {
	f := NewFactory()
	got := f.Merge(fakeHierarchy{}, f.Simple(PosByte), f.Simple(Short))
	if got.Category() != Short {
		t.Errorf("Merge(PosByte, Short) = %s, want short", got)
	}
}

func TestMergeCharWithNumericGoesToInteger(t *testing.T) {
	f := NewFactory()
	got := f.Merge(fakeHierarchy{}, f.Simple(Char), f.Simple(PosByte))
	if got.Category() != Integer {
		t.Errorf("Merge(Char, PosByte) = %s, want integer", got)
	}
}

func TestMergeNullWithReference(t *testing.T) {
	f := NewFactory()
	ref := f.Ref(Reference, object)
	got := f.Merge(fakeHierarchy{}, f.Simple(Null), ref)
	if got != ref {
		t.Errorf("Merge(Null, Reference) = %s, want %s", got, ref)
	}
}

func TestMergeDistinctReferencesFindsCommonSuperclass(t *testing.T) {
	f := NewFactory()
	sub1 := &fakeClass{descriptor: "Lcom/example/A;", super: object}
	sub2 := &fakeClass{descriptor: "Lcom/example/B;", super: object}
	got := f.Merge(fakeHierarchy{}, f.Ref(Reference, sub1), f.Ref(Reference, sub2))
	if got.Category() != Reference || got.Class().Descriptor() != "Ljava/lang/Object;" {
		t.Errorf("Merge(A, B) = %s, want reference(Object)", got)
	}
}

func TestMergeLiveUninitRefWithReferenceOfSameClassConflicts(t *testing.T) {
	// One predecessor initialized the allocation (now a plain Reference);
	// the other still holds the live UninitRef because it never reached
	// the <init> call. These must never settle quietly to the Reference —
	// that would hide a constructor returning with the second path's
	// receiver still uninitialized.
	f := NewFactory()
	uninit := f.UninitRef(object, 0)
	constructed := f.Ref(Reference, object)
	if got := f.Merge(fakeHierarchy{}, uninit, constructed); got.Category() != Conflict {
		t.Errorf("Merge(UninitRef(Object), Reference(Object)) = %s, want conflict", got)
	}
	if got := f.Merge(fakeHierarchy{}, constructed, uninit); got.Category() != Conflict {
		t.Errorf("Merge(Reference(Object), UninitRef(Object)) = %s, want conflict", got)
	}
}

func TestMergeIncompatibleWideHalvesConflict(t *testing.T) {
	f := NewFactory()
	got := f.Merge(fakeHierarchy{}, f.Simple(LongLo), f.Simple(DoubleLo))
	if got.Category() != Conflict {
		t.Errorf("Merge(LongLo, DoubleLo) = %s, want conflict", got)
	}
}

func TestCanBeAssignedTo(t *testing.T) {
	f := NewFactory()
	h := fakeHierarchy{}
	sub := &fakeClass{descriptor: "Lcom/example/Sub;", super: object}

	if !f.CanBeAssignedTo(h, f.Simple(Null), f.Ref(Reference, object)) {
		t.Error("Null should be assignable to any reference type")
	}
	if !f.CanBeAssignedTo(h, f.Simple(PosByte), f.Simple(Integer)) {
		t.Error("PosByte should be assignable to Integer")
	}
	if f.CanBeAssignedTo(h, f.Simple(Integer), f.Simple(PosByte)) {
		t.Error("Integer should not be assignable to the narrower PosByte")
	}
	if !f.CanBeAssignedTo(h, f.Ref(Reference, sub), f.Ref(Reference, object)) {
		t.Error("a subclass reference should be assignable to its superclass")
	}
	if f.CanBeAssignedTo(h, f.Ref(Reference, object), f.Ref(Reference, sub)) {
		t.Error("a superclass reference should not be assignable to a subclass")
	}
	if !f.CanBeAssignedTo(h, f.Simple(Integer), f.Simple(Float)) {
		t.Error("Integer should be assignable to Float: a float literal's bits classify into the integer chain")
	}
	if !f.CanBeAssignedTo(h, f.Simple(Float), f.Simple(Integer)) {
		t.Error("Float should be assignable to Integer")
	}
	if !f.CanBeAssignedTo(h, f.Simple(Byte), f.Simple(Boolean)) {
		t.Error("Byte should be assignable to Boolean (Dalvik compiler artefact)")
	}
	if f.CanBeAssignedTo(h, f.Simple(Short), f.Simple(Boolean)) {
		t.Error("Short should not be assignable to Boolean")
	}
}

func TestForTypeDescriptorPrimitives(t *testing.T) {
	f := NewFactory()
	cases := map[string]Category{
		"Z": Boolean, "B": Byte, "S": Short, "C": Char,
		"I": Integer, "F": Float, "J": LongLo, "D": DoubleLo,
	}
	for desc, want := range cases {
		rt, err := f.ForTypeDescriptor(desc, nil)
		if err != nil {
			t.Fatalf("ForTypeDescriptor(%q): %v", desc, err)
		}
		if rt.Category() != want {
			t.Errorf("ForTypeDescriptor(%q) = %s, want %s", desc, rt.Category(), want)
		}
	}
}

func TestForTypeDescriptorReference(t *testing.T) {
	f := NewFactory()
	rt, err := f.ForTypeDescriptor("Lcom/example/Foo;", func(d string) (ClassRef, error) {
		return &fakeClass{descriptor: d}, nil
	})
	if err != nil {
		t.Fatalf("ForTypeDescriptor: %v", err)
	}
	if rt.Category() != Reference || rt.Class().Descriptor() != "Lcom/example/Foo;" {
		t.Errorf("got %s, want reference(Lcom/example/Foo;)", rt)
	}
}

func TestWideHighFor(t *testing.T) {
	if hi, err := WideHighFor(LongLo); err != nil || hi != LongHi {
		t.Errorf("WideHighFor(LongLo) = %s, %v", hi, err)
	}
	if _, err := WideHighFor(Integer); err == nil {
		t.Error("WideHighFor(Integer) should fail: not a wide-low category")
	}
}
