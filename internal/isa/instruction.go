package isa

import "fmt"

// Instruction is a decoded Dalvik instruction. Not every field is
// meaningful for every Op; which ones apply is determined by Op exactly
// as in a real dex decoder, only the operand *encoding* (2addr, lit8,
// lit16, /range, ...) has already been normalized away.
type Instruction struct {
	// Index and Address are zero until assigned. The textual parser sets
	// them provisionally; the CFG builder (spec §4.2 step 1) then sets
	// Address on every instruction and Index, the node index, on every
	// non-payload instruction.
	Index   int
	Address int

	Op Op

	// Dest is the single destination register for opcodes that write one
	// (move*, const*, unop, most get/cast/new forms). For the *put and
	// array-store families, which write no register, Dest instead names
	// the value register being stored — mirroring the real encoding,
	// where that operand always occupies the same "vAA" slot regardless
	// of read/write direction.
	Dest int

	// Src1/Src2 are the primary source registers: moves, if-*, cmp-*,
	// aget/aput's array+index, iget/iput/sget/sput's object (Src1 only;
	// static forms have none), binop's operands.
	Src1 int
	Src2 int

	// Regs holds the ordered argument registers for filled-new-array and
	// non-range invokes. RangeStart/RangeCount describe the contiguous
	// window used by /range invokes and filled-new-array/range.
	Regs       []int
	RangeStart int
	RangeCount int

	// Literal carries a const's immediate value, an if-*/goto's branch
	// offset (code units, signed, relative to Address), or a
	// packed-switch/sparse-switch/fill-array-data's payload offset
	// (code units, relative to Address, always positive by convention).
	Literal int64

	// TypeDescriptor names the referenced type for check-cast,
	// instance-of, new-instance, new-array, const-class, and
	// filled-new-array.
	TypeDescriptor string

	// StringLiteral carries const-string's payload. The verifier itself
	// never inspects it (every const-string destination is simply a
	// java/lang/String reference); it exists for disassembly output.
	StringLiteral string

	// Field* describe the referenced field for i/sget/i/sput.
	FieldOwner string
	FieldName  string
	FieldType  string

	// Method* describe the referenced method for invoke-kind.
	MethodOwner  string
	MethodName   string
	MethodParams []string
	MethodReturn string

	// Arith and Width describe unop/binop instructions. SrcWidth is only
	// set for ArithConvert, where the operand width differs from Width.
	Arith    ArithKind
	Width    Width
	SrcWidth Width
	// LiteralOperand holds the second binop operand when it is an
	// immediate (/lit8, /lit16) rather than Src2.
	HasLiteralOperand bool
	LiteralOperand    int64

	// Packed/sparse switch payload (only set when Op is one of the
	// *Payload pseudo-ops).
	PackedFirstKey int32
	SparseKeys     []int32
	SwitchOffsets  []int32 // relative to the *switch instruction's* address

	// Fill-array-data payload.
	ElementWidth int // 1, 2, 4, or 8 bytes
	NumElements  int
}

// Size returns the instruction's length in 16-bit code units, the unit
// spec §4.2's size(address) contract is expressed in for this model.
// Most formats are fixed; only the two switch payloads and the
// fill-array-data payload vary with their element/table length, matching
// real Dalvik's variable-length pseudo-instructions.
func (in *Instruction) Size() int {
	switch in.Op {
	case OpPackedSwitchPayload:
		return 4 + 2*len(in.SwitchOffsets)
	case OpSparseSwitchPayload:
		return 2 + 4*len(in.SparseKeys)
	case OpFillArrayDataPayload:
		units := (in.ElementWidth*in.NumElements + 1) / 2
		return 4 + units
	case OpConstWide, OpConstString:
		return 5
	case OpFilledNewArray, OpFilledNewArrayRange, OpConstClass:
		return 3
	case OpInvokeVirtual, OpInvokeSuper, OpInvokeDirect, OpInvokeStatic, OpInvokeInterface,
		OpInvokeVirtualRange, OpInvokeSuperRange, OpInvokeDirectRange, OpInvokeStaticRange, OpInvokeInterfaceRange:
		return 3
	default:
		return 2
	}
}

// SetsWideRegister reports whether this instruction's destination
// occupies a register pair, spec §6's setsWideRegister attribute.
func (in *Instruction) SetsWideRegister() bool {
	switch in.Op {
	case OpMoveWide, OpMoveResultWide, OpConstWide:
		return true
	case OpUnaryOp:
		return in.Width.IsWide()
	case OpBinaryOp:
		return in.Width.IsWide()
	default:
		return false
	}
}

// SetsRegister reports whether this instruction writes a destination
// register at all.
func (in *Instruction) SetsRegister() bool {
	switch in.Op {
	case OpMove, OpMoveWide, OpMoveObject, OpMoveResult, OpMoveResultWide, OpMoveResultObject,
		OpMoveException, OpConst, OpConstWide, OpConstString, OpConstClass,
		OpCheckCast, OpInstanceOf, OpArrayLength, OpNewInstance, OpNewArray,
		OpAGet, OpAGetWide, OpAGetObject, OpAGetBoolean, OpAGetByte, OpAGetChar, OpAGetShort,
		OpIGet, OpIGetWide, OpIGetObject, OpIGetBoolean, OpIGetByte, OpIGetChar, OpIGetShort,
		OpSGet, OpSGetWide, OpSGetObject, OpSGetBoolean, OpSGetByte, OpSGetChar, OpSGetShort,
		OpCmplFloat, OpCmpgFloat, OpCmplDouble, OpCmpgDouble, OpCmpLong,
		OpUnaryOp, OpBinaryOp:
		// OpCheckCast is listed above: it rewrites its operand register in place.
		return true
	default:
		return false
	}
}

// DestinationRegister returns the register this instruction writes, for
// single-destination opcodes (spec §4.3's destinationRegister()).
// check-cast is special: it writes back to its own operand (Src1), never
// Dest.
func (in *Instruction) DestinationRegister() int {
	if in.Op == OpCheckCast {
		return in.Src1
	}
	return in.Dest
}

func (in *Instruction) String() string {
	return fmt.Sprintf("%04x: %s", in.Address, in.Op)
}
