// Package isa models the Dalvik instruction set: opcode families and
// their verifier-relevant attributes (spec §6's Instruction/Opcode
// contract), plus a small textual assembly format for building methods
// without a real dex container (explicitly out of scope per spec §1).
package isa

// Op names an instruction family by its Dalvik/smali mnemonic. Operand
// encoding variants that the real dex format distinguishes only for byte
// layout (e.g. "add-int" vs "add-int/2addr" vs "add-int/lit8") are not
// separate Op values here: the decoder that is out of scope for the
// verifier already normalizes them to register/literal operands, which
// is all the verifier's type rules ever look at.
type Op string

const (
	OpNop Op = "nop"

	OpMove       Op = "move"
	OpMoveWide   Op = "move-wide"
	OpMoveObject Op = "move-object"

	OpMoveResult       Op = "move-result"
	OpMoveResultWide   Op = "move-result-wide"
	OpMoveResultObject Op = "move-result-object"
	OpMoveException    Op = "move-exception"

	OpReturnVoid   Op = "return-void"
	OpReturn       Op = "return"
	OpReturnWide   Op = "return-wide"
	OpReturnObject Op = "return-object"

	OpConst         Op = "const"
	OpConstWide     Op = "const-wide"
	OpConstString   Op = "const-string"
	OpConstClass    Op = "const-class"

	OpMonitorEnter Op = "monitor-enter"
	OpMonitorExit  Op = "monitor-exit"

	OpCheckCast   Op = "check-cast"
	OpInstanceOf  Op = "instance-of"
	OpArrayLength Op = "array-length"

	OpNewInstance Op = "new-instance"
	OpNewArray    Op = "new-array"

	OpFilledNewArray      Op = "filled-new-array"
	OpFilledNewArrayRange Op = "filled-new-array/range"
	OpFillArrayData       Op = "fill-array-data"

	OpThrow Op = "throw"
	OpGoto  Op = "goto"

	OpPackedSwitch Op = "packed-switch"
	OpSparseSwitch Op = "sparse-switch"

	OpCmplFloat  Op = "cmpl-float"
	OpCmpgFloat  Op = "cmpg-float"
	OpCmplDouble Op = "cmpl-double"
	OpCmpgDouble Op = "cmpg-double"
	OpCmpLong    Op = "cmp-long"

	OpIfEq Op = "if-eq"
	OpIfNe Op = "if-ne"
	OpIfLt Op = "if-lt"
	OpIfGe Op = "if-ge"
	OpIfGt Op = "if-gt"
	OpIfLe Op = "if-le"

	OpIfEqz Op = "if-eqz"
	OpIfNez Op = "if-nez"
	OpIfLtz Op = "if-ltz"
	OpIfGez Op = "if-gez"
	OpIfGtz Op = "if-gtz"
	OpIfLez Op = "if-lez"

	OpAGet        Op = "aget"
	OpAGetWide    Op = "aget-wide"
	OpAGetObject  Op = "aget-object"
	OpAGetBoolean Op = "aget-boolean"
	OpAGetByte    Op = "aget-byte"
	OpAGetChar    Op = "aget-char"
	OpAGetShort   Op = "aget-short"

	OpAPut        Op = "aput"
	OpAPutWide    Op = "aput-wide"
	OpAPutObject  Op = "aput-object"
	OpAPutBoolean Op = "aput-boolean"
	OpAPutByte    Op = "aput-byte"
	OpAPutChar    Op = "aput-char"
	OpAPutShort   Op = "aput-short"

	OpIGet        Op = "iget"
	OpIGetWide    Op = "iget-wide"
	OpIGetObject  Op = "iget-object"
	OpIGetBoolean Op = "iget-boolean"
	OpIGetByte    Op = "iget-byte"
	OpIGetChar    Op = "iget-char"
	OpIGetShort   Op = "iget-short"

	OpIPut        Op = "iput"
	OpIPutWide    Op = "iput-wide"
	OpIPutObject  Op = "iput-object"
	OpIPutBoolean Op = "iput-boolean"
	OpIPutByte    Op = "iput-byte"
	OpIPutChar    Op = "iput-char"
	OpIPutShort   Op = "iput-short"

	OpSGet        Op = "sget"
	OpSGetWide    Op = "sget-wide"
	OpSGetObject  Op = "sget-object"
	OpSGetBoolean Op = "sget-boolean"
	OpSGetByte    Op = "sget-byte"
	OpSGetChar    Op = "sget-char"
	OpSGetShort   Op = "sget-short"

	OpSPut        Op = "sput"
	OpSPutWide    Op = "sput-wide"
	OpSPutObject  Op = "sput-object"
	OpSPutBoolean Op = "sput-boolean"
	OpSPutByte    Op = "sput-byte"
	OpSPutChar    Op = "sput-char"
	OpSPutShort   Op = "sput-short"

	OpInvokeVirtual   Op = "invoke-virtual"
	OpInvokeSuper     Op = "invoke-super"
	OpInvokeDirect    Op = "invoke-direct"
	OpInvokeStatic    Op = "invoke-static"
	OpInvokeInterface Op = "invoke-interface"

	OpInvokeVirtualRange   Op = "invoke-virtual/range"
	OpInvokeSuperRange     Op = "invoke-super/range"
	OpInvokeDirectRange    Op = "invoke-direct/range"
	OpInvokeStaticRange    Op = "invoke-static/range"
	OpInvokeInterfaceRange Op = "invoke-interface/range"

	OpUnaryOp  Op = "unop"
	OpBinaryOp Op = "binop"

	// OpPackedSwitchPayload and OpSparseSwitchPayload are pseudo-instructions:
	// data tables referenced by packed-switch/sparse-switch, never reached by
	// control flow directly (real Dalvik places them inline in the code
	// stream but they are not executable).
	OpPackedSwitchPayload Op = "packed-switch-payload"
	OpSparseSwitchPayload Op = "sparse-switch-payload"
	OpFillArrayDataPayload Op = "fill-array-data-payload"
)

// ArithKind is the operation performed by a unary or binary arithmetic
// instruction.
type ArithKind string

const (
	ArithAdd  ArithKind = "add"
	ArithSub  ArithKind = "sub"
	ArithRSub ArithKind = "rsub"
	ArithMul  ArithKind = "mul"
	ArithDiv  ArithKind = "div"
	ArithRem  ArithKind = "rem"
	ArithAnd  ArithKind = "and"
	ArithOr   ArithKind = "or"
	ArithXor  ArithKind = "xor"
	ArithShl  ArithKind = "shl"
	ArithShr  ArithKind = "shr"
	ArithUshr ArithKind = "ushr"
	ArithNeg  ArithKind = "neg"
	ArithNot  ArithKind = "not"
	// ArithConvert is a widening/narrowing numeric conversion; the source
	// and destination Width differ (e.g. int-to-long, double-to-float).
	ArithConvert ArithKind = "convert"
)

// Width is the bit width and numeric domain an arithmetic operand or
// result occupies.
type Width string

const (
	WidthInt32   Width = "int32"
	WidthInt64   Width = "int64"
	WidthFloat32 Width = "float32"
	WidthFloat64 Width = "float64"
)

// IsWide reports whether a value of this width occupies a register pair.
func (w Width) IsWide() bool { return w == WidthInt64 || w == WidthFloat64 }

// OpMeta is the static, per-family verifier-relevant metadata spec §6
// calls out explicitly: canThrow, canContinue, setsResult, name.
// Whether an instruction sets a wide register depends on its operand
// width and is answered by Instruction.SetsWideRegister instead.
type OpMeta struct {
	Name        string
	CanThrow    bool
	CanContinue bool
	SetsResult  bool
}

var opMeta = map[Op]OpMeta{
	OpNop:              {"nop", false, true, false},
	OpMove:             {"move", false, true, false},
	OpMoveWide:         {"move-wide", false, true, false},
	OpMoveObject:       {"move-object", false, true, false},
	OpMoveResult:       {"move-result", false, true, false},
	OpMoveResultWide:   {"move-result-wide", false, true, false},
	OpMoveResultObject: {"move-result-object", false, true, false},
	OpMoveException:    {"move-exception", false, true, false},
	OpReturnVoid:       {"return-void", false, false, false},
	OpReturn:           {"return", false, false, false},
	OpReturnWide:       {"return-wide", false, false, false},
	OpReturnObject:     {"return-object", false, false, false},
	OpConst:            {"const", false, true, false},
	OpConstWide:        {"const-wide", false, true, false},
	OpConstString:      {"const-string", true, true, false},
	OpConstClass:       {"const-class", true, true, false},
	OpMonitorEnter:     {"monitor-enter", true, true, false},
	OpMonitorExit:      {"monitor-exit", true, true, false},
	OpCheckCast:        {"check-cast", true, true, false},
	OpInstanceOf:       {"instance-of", false, true, false},
	OpArrayLength:      {"array-length", true, true, false},
	OpNewInstance:      {"new-instance", true, true, false},
	OpNewArray:         {"new-array", true, true, false},
	OpFilledNewArray:      {"filled-new-array", true, true, true},
	OpFilledNewArrayRange: {"filled-new-array/range", true, true, true},
	OpFillArrayData:    {"fill-array-data", true, true, false},
	OpThrow:            {"throw", true, false, false},
	OpGoto:             {"goto", false, false, false},
	OpPackedSwitch:     {"packed-switch", false, true, false},
	OpSparseSwitch:     {"sparse-switch", false, true, false},
	OpCmplFloat:        {"cmpl-float", false, true, false},
	OpCmpgFloat:        {"cmpg-float", false, true, false},
	OpCmplDouble:       {"cmpl-double", false, true, false},
	OpCmpgDouble:       {"cmpg-double", false, true, false},
	OpCmpLong:          {"cmp-long", false, true, false},
	OpIfEq:  {"if-eq", false, true, false},
	OpIfNe:  {"if-ne", false, true, false},
	OpIfLt:  {"if-lt", false, true, false},
	OpIfGe:  {"if-ge", false, true, false},
	OpIfGt:  {"if-gt", false, true, false},
	OpIfLe:  {"if-le", false, true, false},
	OpIfEqz: {"if-eqz", false, true, false},
	OpIfNez: {"if-nez", false, true, false},
	OpIfLtz: {"if-ltz", false, true, false},
	OpIfGez: {"if-gez", false, true, false},
	OpIfGtz: {"if-gtz", false, true, false},
	OpIfLez: {"if-lez", false, true, false},
	OpAGet: {"aget", true, true, false}, OpAGetWide: {"aget-wide", true, true, false},
	OpAGetObject: {"aget-object", true, true, false}, OpAGetBoolean: {"aget-boolean", true, true, false},
	OpAGetByte: {"aget-byte", true, true, false}, OpAGetChar: {"aget-char", true, true, false},
	OpAGetShort: {"aget-short", true, true, false},
	OpAPut:      {"aput", true, true, false}, OpAPutWide: {"aput-wide", true, true, false},
	OpAPutObject: {"aput-object", true, true, false}, OpAPutBoolean: {"aput-boolean", true, true, false},
	OpAPutByte: {"aput-byte", true, true, false}, OpAPutChar: {"aput-char", true, true, false},
	OpAPutShort: {"aput-short", true, true, false},
	OpIGet:      {"iget", true, true, false}, OpIGetWide: {"iget-wide", true, true, false},
	OpIGetObject: {"iget-object", true, true, false}, OpIGetBoolean: {"iget-boolean", true, true, false},
	OpIGetByte: {"iget-byte", true, true, false}, OpIGetChar: {"iget-char", true, true, false},
	OpIGetShort: {"iget-short", true, true, false},
	OpIPut:      {"iput", true, true, false}, OpIPutWide: {"iput-wide", true, true, false},
	OpIPutObject: {"iput-object", true, true, false}, OpIPutBoolean: {"iput-boolean", true, true, false},
	OpIPutByte: {"iput-byte", true, true, false}, OpIPutChar: {"iput-char", true, true, false},
	OpIPutShort: {"iput-short", true, true, false},
	OpSGet:      {"sget", true, true, false}, OpSGetWide: {"sget-wide", true, true, false},
	OpSGetObject: {"sget-object", true, true, false}, OpSGetBoolean: {"sget-boolean", true, true, false},
	OpSGetByte: {"sget-byte", true, true, false}, OpSGetChar: {"sget-char", true, true, false},
	OpSGetShort: {"sget-short", true, true, false},
	OpSPut:      {"sput", true, true, false}, OpSPutWide: {"sput-wide", true, true, false},
	OpSPutObject: {"sput-object", true, true, false}, OpSPutBoolean: {"sput-boolean", true, true, false},
	OpSPutByte: {"sput-byte", true, true, false}, OpSPutChar: {"sput-char", true, true, false},
	OpSPutShort: {"sput-short", true, true, false},
	OpInvokeVirtual:   {"invoke-virtual", true, true, true},
	OpInvokeSuper:     {"invoke-super", true, true, true},
	OpInvokeDirect:    {"invoke-direct", true, true, true},
	OpInvokeStatic:    {"invoke-static", true, true, true},
	OpInvokeInterface: {"invoke-interface", true, true, true},
	OpInvokeVirtualRange:   {"invoke-virtual/range", true, true, true},
	OpInvokeSuperRange:     {"invoke-super/range", true, true, true},
	OpInvokeDirectRange:    {"invoke-direct/range", true, true, true},
	OpInvokeStaticRange:    {"invoke-static/range", true, true, true},
	OpInvokeInterfaceRange: {"invoke-interface/range", true, true, true},
	OpUnaryOp:  {"unop", false, true, false},
	OpBinaryOp: {"binop", false, true, false},
	OpPackedSwitchPayload:  {"packed-switch-payload", false, false, false},
	OpSparseSwitchPayload:  {"sparse-switch-payload", false, false, false},
	OpFillArrayDataPayload: {"fill-array-data-payload", false, false, false},
}

// Meta returns the static opcode-family metadata for op. The zero value
// with Name "" is returned for an unknown op.
func Meta(op Op) OpMeta {
	return opMeta[op]
}

// IsInvoke reports whether op is any invoke-kind instruction.
func IsInvoke(op Op) bool {
	switch op {
	case OpInvokeVirtual, OpInvokeSuper, OpInvokeDirect, OpInvokeStatic, OpInvokeInterface,
		OpInvokeVirtualRange, OpInvokeSuperRange, OpInvokeDirectRange, OpInvokeStaticRange, OpInvokeInterfaceRange:
		return true
	default:
		return false
	}
}

// IsInvokeRange reports whether op is a /range invoke form.
func IsInvokeRange(op Op) bool {
	switch op {
	case OpInvokeVirtualRange, OpInvokeSuperRange, OpInvokeDirectRange, OpInvokeStaticRange, OpInvokeInterfaceRange:
		return true
	default:
		return false
	}
}
