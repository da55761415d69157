package isa

import "testing"

// ctor is a minimal instance initializer: copy the receiver, call the
// superclass constructor, store a field, return. Mirrors the shape of
// scenario S1 in the verifier's own test suite (object construction with
// an uninitialized-this register).
const ctor = `
.method public constructor
.class Lcom/example/Foo;
.name <init>
.proto (I)V
.registers 3
.code
    move v2, v0
    invoke-direct {v2}, Ljava/lang/Object;-><init>()V
    const v1, #0
    iput v1, v2, Lcom/example/Foo;->count:I
    return-void
.end-method
`

func TestParseMethodConstructor(t *testing.T) {
	m, err := ParseMethod(ctor)
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}
	if m.MethodName != "<init>" {
		t.Errorf("MethodName = %q, want <init>", m.MethodName)
	}
	if m.ContainingClass != "Lcom/example/Foo;" {
		t.Errorf("ContainingClass = %q", m.ContainingClass)
	}
	if m.RegisterCount != 3 {
		t.Errorf("RegisterCount = %d, want 3", m.RegisterCount)
	}
	if len(m.Parameters) != 1 || m.Parameters[0] != "I" {
		t.Errorf("Parameters = %v, want [I]", m.Parameters)
	}
	if m.ReturnType != "V" {
		t.Errorf("ReturnType = %q, want V", m.ReturnType)
	}
	if got := m.AccessFlags; got&accConstructor == 0 || got&0x0001 == 0 {
		t.Errorf("AccessFlags = %#x, want public|constructor set", got)
	}
	if len(m.Instructions) != 5 {
		t.Fatalf("len(Instructions) = %d, want 5", len(m.Instructions))
	}

	invoke := m.Instructions[1]
	if invoke.Op != OpInvokeDirect {
		t.Fatalf("Instructions[1].Op = %s, want invoke-direct", invoke.Op)
	}
	if invoke.MethodOwner != "Ljava/lang/Object;" || invoke.MethodName != "<init>" {
		t.Errorf("invoke-direct target = %s->%s", invoke.MethodOwner, invoke.MethodName)
	}
	if len(invoke.Regs) != 1 || invoke.Regs[0] != 2 {
		t.Errorf("invoke-direct Regs = %v, want [2]", invoke.Regs)
	}

	iput := m.Instructions[3]
	if iput.Op != OpIPut || iput.FieldOwner != "Lcom/example/Foo;" || iput.FieldName != "count" || iput.FieldType != "I" {
		t.Errorf("iput field ref = %+v", iput)
	}
}

// branchy exercises goto/if-* label resolution and a branch-arithmetic
// mnemonic from the collapsed unop/binop family.
const branchy = `
.method public
.class Lcom/example/Loop;
.name sumTo
.proto (I)I
.registers 4
.code
    const v1, #0
    const v2, #0
loop:
    if-ge v2, v0, done
    add-int v1, v1, v2
    const v3, #1
    add-int v2, v2, v3
    goto loop
done:
    move v0, v1
    return v0
.end-method
`

func TestParseMethodBranches(t *testing.T) {
	m, err := ParseMethod(branchy)
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}

	var ifGe, goTo *Instruction
	for _, in := range m.Instructions {
		switch in.Op {
		case OpIfGe:
			ifGe = in
		case OpGoto:
			goTo = in
		}
	}
	if ifGe == nil || goTo == nil {
		t.Fatalf("missing if-ge/goto in %+v", m.Instructions)
	}

	// if-ge targets "done", the instruction right after the goto (done:
	// labels move v0, v1, which comes right before return).
	wantIfGeOffset := int64(goTo.Address + goTo.Size() - ifGe.Address)
	if ifGe.Literal != wantIfGeOffset {
		t.Errorf("if-ge offset = %d, want %d", ifGe.Literal, wantIfGeOffset)
	}

	// goto jumps back up to the if-ge itself (the loop label).
	wantGotoOffset := int64(ifGe.Address - goTo.Address)
	if goTo.Literal != wantGotoOffset {
		t.Errorf("goto offset = %d, want %d", goTo.Literal, wantGotoOffset)
	}

	var add1 *Instruction
	for _, in := range m.Instructions {
		if in.Op == OpBinaryOp && in.Arith == ArithAdd {
			add1 = in
			break
		}
	}
	if add1 == nil {
		t.Fatal("no add-int instruction found")
	}
	if add1.Width != WidthInt32 {
		t.Errorf("add-int Width = %s, want int32", add1.Width)
	}
	if add1.Dest != 1 || add1.Src1 != 1 || add1.Src2 != 2 {
		t.Errorf("add-int operands = dest=%d src1=%d src2=%d, want 1,1,2", add1.Dest, add1.Src1, add1.Src2)
	}
}

// switchy exercises packed-switch label resolution, where the payload's
// SwitchOffsets must end up relative to the switch instruction, not the
// payload's own address.
const switchy = `
.method public
.class Lcom/example/Sw;
.name classify
.proto (I)I
.registers 2
.code
    packed-switch v0, pswitch_data
    const v1, #99
    return v1
case0:
    const v1, #0
    return v1
case1:
    const v1, #1
    return v1
pswitch_data:
    .packed-switch-payload first=0 targets=case0,case1
.end-method
`

func TestParseMethodPackedSwitch(t *testing.T) {
	m, err := ParseMethod(switchy)
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}

	var sw, payload *Instruction
	for _, in := range m.Instructions {
		switch in.Op {
		case OpPackedSwitch:
			sw = in
		case OpPackedSwitchPayload:
			payload = in
		}
	}
	if sw == nil || payload == nil {
		t.Fatalf("missing packed-switch/payload in %+v", m.Instructions)
	}
	if len(payload.SwitchOffsets) != 2 {
		t.Fatalf("SwitchOffsets = %v, want len 2", payload.SwitchOffsets)
	}

	// case0 is the instruction right after the leading "const v1, #99;
	// return v1" pair (2 fixed-size instructions after the switch).
	case0Addr := sw.Address + sw.Size() + 2*2 // const + return, both fixed-size 2
	wantOffset0 := int32(case0Addr - sw.Address)
	if payload.SwitchOffsets[0] != wantOffset0 {
		t.Errorf("SwitchOffsets[0] = %d, want %d", payload.SwitchOffsets[0], wantOffset0)
	}
}

// guarded exercises .catch/.catchall resolution against labels defined
// inside the code block.
const guarded = `
.method public
.class Lcom/example/Guard;
.name risky
.proto ()V
.registers 2
.code
try_start:
    new-instance v0, Ljava/lang/Object;
    invoke-direct {v0}, Ljava/lang/Object;-><init>()V
try_end:
    goto done
npe_handler:
    move-exception v1
    goto done
any_handler:
    move-exception v1
done:
    return-void
.end-method
.catch Ljava/lang/NullPointerException; try_start try_end npe_handler
.catchall try_start try_end any_handler
`

func TestParseMethodTryCatch(t *testing.T) {
	m, err := ParseMethod(guarded)
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}
	if len(m.Tries) != 1 {
		t.Fatalf("len(Tries) = %d, want 1 (both clauses share the same range)", len(m.Tries))
	}
	try := m.Tries[0]
	if len(try.Handlers) != 1 || try.Handlers[0].Type != "Ljava/lang/NullPointerException;" {
		t.Errorf("Handlers = %+v", try.Handlers)
	}
	if try.CatchAll == nil {
		t.Fatal("CatchAll not set")
	}
}

func TestParseMethodRejectsUndefinedLabel(t *testing.T) {
	src := `
.method public
.class Lcom/example/Bad;
.name oops
.proto ()V
.registers 1
.code
    goto nowhere
.end-method
`
	if _, err := ParseMethod(src); err == nil {
		t.Fatal("expected an error for an undefined label, got nil")
	}
}

func TestSplitProto(t *testing.T) {
	params, ret, err := splitProto("(Ljava/lang/String;IJ[B)Z")
	if err != nil {
		t.Fatalf("splitProto: %v", err)
	}
	want := []string{"Ljava/lang/String;", "I", "J", "[B"}
	if len(params) != len(want) {
		t.Fatalf("params = %v, want %v", params, want)
	}
	for i := range want {
		if params[i] != want[i] {
			t.Errorf("params[%d] = %q, want %q", i, params[i], want[i])
		}
	}
	if ret != "Z" {
		t.Errorf("ret = %q, want Z", ret)
	}
}

func TestParameterRegisterWidth(t *testing.T) {
	if got := parameterRegisterWidth([]string{"I", "J", "Ljava/lang/Object;", "D"}); got != 4 {
		t.Errorf("parameterRegisterWidth = %d, want 4 (J and D each occupy two registers)", got)
	}
}
