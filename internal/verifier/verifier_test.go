package verifier

import (
	"testing"

	"github.com/dexverify/dalvikverify/internal/classoracle"
	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/method"
	"github.com/dexverify/dalvikverify/internal/regtype"
)

// toEncodedMethod bridges isa.ParsedMethod to method.EncodedMethod, the
// same conversion the CLI performs: internal/isa cannot import
// internal/method directly (method already imports isa for the
// Instruction alias), so only a package importing both can do this copy.
func toEncodedMethod(pm *isa.ParsedMethod) *method.EncodedMethod {
	code := &method.CodeItem{RegisterCount: pm.RegisterCount, Instructions: pm.Instructions}
	for _, t := range pm.Tries {
		try := method.TryItem{StartAddress: t.StartAddress, EndAddress: t.EndAddress}
		for _, h := range t.Handlers {
			try.Handlers = append(try.Handlers, method.Handler{Type: h.Type, Address: h.Address})
		}
		if t.CatchAll != nil {
			try.CatchAll = &method.Handler{Type: t.CatchAll.Type, Address: t.CatchAll.Address}
		}
		code.Tries = append(code.Tries, try)
	}
	return &method.EncodedMethod{
		AccessFlags:     method.AccessFlags(pm.AccessFlags),
		ContainingClass: pm.ContainingClass,
		MethodName:      pm.MethodName,
		Prototype: method.Prototype{
			ReturnType:             pm.ReturnType,
			Parameters:             pm.Parameters,
			ParameterRegisterCount: pm.ParameterRegisterCount,
		},
		Code: code,
	}
}

func parseAndVerify(t *testing.T, src string, oracle *classoracle.Oracle) error {
	t.Helper()
	pm, err := isa.ParseMethod(src)
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}
	if oracle == nil {
		oracle = classoracle.NewOracle()
	}
	// The containing class is never one of the oracle's pre-seeded JDK
	// ancestors; register it directly under Object unless the test already
	// registered it (with a more specific hierarchy) itself.
	if _, resolveErr := oracle.Resolve(pm.ContainingClass); resolveErr != nil {
		oracle.Register(pm.ContainingClass, "Ljava/lang/Object;", false, nil, nil)
	}
	_, err = Analyze(toEncodedMethod(pm), oracle, regtype.NewFactory())
	return err
}

// S1: a well-formed constructor that initializes its receiver before use
// must verify cleanly.
func TestScenarioConstructorInitializesReceiver(t *testing.T) {
	src := `
.method public constructor
.class Lcom/example/Foo;
.name <init>
.proto ()V
.registers 1
.code
    invoke-direct {v0}, Ljava/lang/Object;-><init>()V
    return-void
.end-method
`
	if err := parseAndVerify(t, src, nil); err != nil {
		t.Fatalf("expected a clean verify, got %v", err)
	}
}

// S2: a constructor that returns without ever calling this(...) or
// super(...) leaves its receiver permanently uninitialized, which must
// be rejected.
func TestScenarioUseBeforeConstructorFails(t *testing.T) {
	src := `
.method public constructor
.class Lcom/example/Foo;
.name <init>
.proto ()V
.registers 1
.code
    return-void
.end-method
`
	if err := parseAndVerify(t, src, nil); err == nil {
		t.Fatal("expected verification to fail: constructor never initializes its receiver")
	}
}

// S3: a branch that merges a Null literal with a constructed reference
// for the same register must unify to the reference type and verify.
func TestScenarioNullMergesWithReference(t *testing.T) {
	src := `
.method public static
.class Lcom/example/Foo;
.name pick
.proto (I)Ljava/lang/Object;
.registers 2
.code
    if-eqz v1, useNull
    new-instance v0, Ljava/lang/Object;
    invoke-direct {v0}, Ljava/lang/Object;-><init>()V
    goto done
useNull:
    const v0, #0
done:
    return-object v0
.end-method
`
	if err := parseAndVerify(t, src, nil); err != nil {
		t.Fatalf("expected a clean verify (Null/Reference merge), got %v", err)
	}
}

// S4: a register holding incompatible types on different incoming edges
// (an int literal on one path, a Reference on the other) must be rejected
// when used as a reference at the merge point.
func TestScenarioConflictingMergeFails(t *testing.T) {
	src := `
.method public static
.class Lcom/example/Foo;
.name pick
.proto (I)Ljava/lang/Object;
.registers 2
.code
    if-eqz v1, useInt
    new-instance v0, Ljava/lang/Object;
    invoke-direct {v0}, Ljava/lang/Object;-><init>()V
    goto done
useInt:
    const v0, #5
done:
    return-object v0
.end-method
`
	if err := parseAndVerify(t, src, nil); err == nil {
		t.Fatal("expected verification to fail: v0 is PosByte on one incoming edge, Reference(Object) on the other")
	}
}

// S5: storing an int parameter into a field of the receiver exercises
// iput typing against a registered classpath, with a field descriptor
// matching what was stored.
func TestScenarioFieldAccessAgainstClasspath(t *testing.T) {
	o := classoracle.NewOracle()
	o.Register("Lcom/example/Box;", "Ljava/lang/Object;", false, nil, nil)
	src := `
.method public
.class Lcom/example/Box;
.name setCount
.proto (I)V
.registers 3
.code
    iput v2, v1, Lcom/example/Box;->count:I
    return-void
.end-method
`
	if err := parseAndVerify(t, src, o); err != nil {
		t.Fatalf("expected a clean verify, got %v", err)
	}
}

// S6: invoking a method on a value known to be Null (e.g. the result of
// an uninitialized-then-merged-to-null path feeding an invoke-direct
// receiver) is outside what this verifier's dataflow rejects structurally
// - Null is assignable to any reference and a real VM would throw
// NullPointerException at runtime, not at verify time. Confirms the
// verifier accepts the program rather than false-rejecting it.
func TestScenarioNullReceiverAtInvokeIsAccepted(t *testing.T) {
	src := `
.method public static
.class Lcom/example/Foo;
.name callOnMaybeNull
.proto ()V
.registers 1
.code
    const v0, #0
    invoke-virtual {v0}, Ljava/lang/Object;->hashCode()I
    return-void
.end-method
`
	if err := parseAndVerify(t, src, nil); err != nil {
		t.Fatalf("expected a clean verify (Null receiver is a runtime NPE, not a verify error), got %v", err)
	}
}

func TestStaticMethodHasNoReceiver(t *testing.T) {
	src := `
.method public static
.class Lcom/example/Foo;
.name add
.proto (II)I
.registers 2
.code
    add-int v0, v0, v1
    return v0
.end-method
`
	if err := parseAndVerify(t, src, nil); err != nil {
		t.Fatalf("expected a clean verify, got %v", err)
	}
}

func TestConstructorNameMismatchIsStructuralError(t *testing.T) {
	src := `
.method public constructor
.class Lcom/example/Foo;
.name notInit
.proto ()V
.registers 1
.code
    return-void
.end-method
`
	pm, err := isa.ParseMethod(src)
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}
	o := classoracle.NewOracle()
	o.Register(pm.ContainingClass, "Ljava/lang/Object;", false, nil, nil)
	_, err = Analyze(toEncodedMethod(pm), o, regtype.NewFactory())
	if err == nil {
		t.Fatal("expected a structural error: constructor-flagged method not named <init>")
	}
}

// S7: a constructor that calls <init> on one incoming edge but not the
// other must not let the two edges settle quietly to the initialized
// type at their join — the receiver used afterward sees a Conflict and
// fails, instead of the merge silently picking the Reference side.
func TestScenarioUninitializedReceiverOnOneBranchConflicts(t *testing.T) {
	src := `
.method public constructor
.class Lcom/example/Foo;
.name <init>
.proto ()V
.registers 1
.code
    if-eqz v0, skip
    invoke-direct {v0}, Ljava/lang/Object;-><init>()V
    goto join
skip:
    nop
join:
    invoke-virtual {v0}, Ljava/lang/Object;->hashCode()I
    return-void
.end-method
`
	if err := parseAndVerify(t, src, nil); err == nil {
		t.Fatal("expected verification to fail: one incoming edge to join never called <init> on v0")
	}
}

// S8: Dalvik shares one 32-bit wire representation between int and
// float, so a const-classified literal must be assignable straight into
// a float-typed field without an explicit float opcode ever running.
func TestScenarioIntLiteralAssignableToFloatField(t *testing.T) {
	o := classoracle.NewOracle()
	o.Register("Lcom/example/Box;", "Ljava/lang/Object;", false, nil, nil)
	src := `
.method public
.class Lcom/example/Box;
.name setRatio
.proto (I)V
.registers 3
.code
    const v0, #1065353216
    iput v0, v1, Lcom/example/Box;->ratio:F
    return-void
.end-method
`
	if err := parseAndVerify(t, src, o); err != nil {
		t.Fatalf("expected a clean verify (int/float wire interchange), got %v", err)
	}
}

// S9: a Byte-categorized value may be stored into a Boolean field (a
// Dalvik compiler artefact around how boolean constants get encoded),
// but a wider value (200, PosShort-categorized) must still be rejected.
func TestScenarioByteAssignableToBooleanFieldButShortIsNot(t *testing.T) {
	o := classoracle.NewOracle()
	o.Register("Lcom/example/Box;", "Ljava/lang/Object;", false, nil, nil)
	src := `
.method public
.class Lcom/example/Box;
.name setFlag
.proto (I)V
.registers 3
.code
    const v0, #-1
    iput-boolean v0, v1, Lcom/example/Box;->flag:Z
    return-void
.end-method
`
	if err := parseAndVerify(t, src, o); err != nil {
		t.Fatalf("expected a clean verify (Byte/Boolean compiler artefact), got %v", err)
	}

	src = `
.method public
.class Lcom/example/Box;
.name setFlag
.proto (I)V
.registers 3
.code
    const v0, #200
    iput-boolean v0, v1, Lcom/example/Box;->flag:Z
    return-void
.end-method
`
	if err := parseAndVerify(t, src, o); err == nil {
		t.Fatal("expected verification to fail: a PosShort-categorized value is not assignable to a Boolean field")
	}
}

func TestLoopWithWideningMergeReachesFixedPoint(t *testing.T) {
	src := `
.method public static
.class Lcom/example/Loop;
.name sumTo
.proto (I)I
.registers 4
.code
    const v1, #0
    const v2, #0
loop:
    if-ge v2, v3, done
    add-int v1, v1, v2
    const v0, #1
    add-int v2, v2, v0
    goto loop
done:
    move v0, v1
    return v0
.end-method
`
	if err := parseAndVerify(t, src, nil); err != nil {
		t.Fatalf("expected the worklist to reach a fixed point cleanly, got %v", err)
	}
}
