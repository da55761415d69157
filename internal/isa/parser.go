package isa

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ParsedMethod is everything method.EncodedMethod needs, produced by
// parsing a .dsmali text file. It duplicates method.EncodedMethod's
// shape rather than returning one directly: internal/method already
// imports internal/isa for the Instruction alias, so this package
// cannot import it back. A caller with both packages in scope (the CLI)
// copies these fields across.
type ParsedMethod struct {
	AccessFlags            uint32
	ContainingClass        string
	MethodName             string
	ReturnType             string
	Parameters             []string
	ParameterRegisterCount int
	RegisterCount          int
	Instructions           []*Instruction
	Tries                  []ParsedTry
}

// ParsedTry mirrors method.TryItem.
type ParsedTry struct {
	StartAddress int
	EndAddress   int
	Handlers     []ParsedHandler
	CatchAll     *ParsedHandler
}

// ParsedHandler mirrors method.Handler.
type ParsedHandler struct {
	Type    string
	Address int
}

// Access flag bits, duplicated from internal/method to avoid the import
// cycle noted on ParsedMethod.
const (
	accStatic      = 0x0008
	accConstructor = 0x10000
)

var accessFlagBits = map[string]uint32{
	"public":       0x0001,
	"private":      0x0002,
	"protected":    0x0004,
	"static":       accStatic,
	"final":        0x0010,
	"synchronized": 0x0020,
	"native":       0x0100,
	"abstract":     0x0400,
	"constructor":  accConstructor,
}

// dsmaliGrammar is the top-level document shape: a method header, its
// instruction body captured as one raw block (hand-scanned below, since
// the per-mnemonic operand shapes vary too much for a single context-free
// grammar to carry without a lot of participle machinery that buys
// nothing over a line scanner here), and a trailing list of exception
// handler declarations.
type dsmaliGrammar struct {
	Access    []string    `".method" @Ident+`
	Owner     string      `".class" @Descriptor`
	Name      string      `".name" @Ident`
	Proto     string      `".proto" @Proto`
	Registers int         `".registers" @Number`
	Body      string      `@Body`
	Catches   []catchLine `@@*`
}

type catchLine struct {
	Directive string `@(".catch" | ".catchall")`
	Type      string `@Descriptor?`
	Start     string `@Ident`
	End       string `@Ident`
	Handler   string `@Ident`
}

var dsmaliLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Body", Pattern: `(?s)\.code\b.*?\n\s*\.end-method\b`},
	{Name: "Newline", Pattern: `\r?\n`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Arrow", Pattern: `->`},
	// Proto must precede Descriptor/Punct: a prototype like "(ILfoo;)V"
	// would otherwise lex as a lone '(' Punct token and fail to parse.
	{Name: "Proto", Pattern: `\((?:\[*(?:L[A-Za-z0-9_$/]+;|[ZBCFIJDS]))*\)\[*(?:L[A-Za-z0-9_$/]+;|[ZBCFIJDSV])`},
	{Name: "Descriptor", Pattern: `\[*(L[A-Za-z0-9_$/]+;|[ZBCFIJDSV])`},
	{Name: "Number", Pattern: `-?(0[xX][0-9a-fA-F]+|[0-9]+)`},
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Directive", Pattern: `\.[A-Za-z][A-Za-z-]*`},
	{Name: "Ident", Pattern: `[A-Za-z_<][A-Za-z0-9_<>./\-]*`},
	{Name: "Punct", Pattern: `[{}(),:=.]`},
})

var dsmaliParser = participle.MustBuild[dsmaliGrammar](
	participle.Lexer(dsmaliLexer),
	participle.Elide("Comment", "Whitespace", "Newline"),
	participle.Unquote("String"),
)

// ParseMethod parses one .dsmali text file into a ParsedMethod. See
// parser_test.go for the format by example.
func ParseMethod(src string) (*ParsedMethod, error) {
	doc, err := dsmaliParser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("isa: parsing method: %w", err)
	}

	params, ret, err := splitProto(doc.Proto)
	if err != nil {
		return nil, fmt.Errorf("isa: parsing prototype %q: %w", doc.Proto, err)
	}

	var flags uint32
	for _, a := range doc.Access {
		bit, ok := accessFlagBits[a]
		if !ok {
			return nil, fmt.Errorf("isa: unrecognized access flag %q", a)
		}
		flags |= bit
	}

	instrs, labels, err := scanBody(doc.Body)
	if err != nil {
		return nil, err
	}
	if err := resolveTargets(instrs); err != nil {
		return nil, err
	}

	m := &ParsedMethod{
		AccessFlags:     flags,
		ContainingClass: doc.Owner,
		MethodName:      doc.Name,
		ReturnType:      ret,
		Parameters:      params,
		RegisterCount:   doc.Registers,
	}
	m.ParameterRegisterCount = parameterRegisterWidth(params)

	for _, e := range instrs {
		m.Instructions = append(m.Instructions, e.instr)
	}

	for _, c := range doc.Catches {
		start, ok := labels[c.Start]
		if !ok {
			return nil, fmt.Errorf("isa: .catch start label %q not defined", c.Start)
		}
		end, ok := labels[c.End]
		if !ok {
			return nil, fmt.Errorf("isa: .catch end label %q not defined", c.End)
		}
		handler, ok := labels[c.Handler]
		if !ok {
			return nil, fmt.Errorf("isa: .catch handler label %q not defined", c.Handler)
		}
		try := findOrAppendTry(m, start, end)
		if c.Directive == ".catchall" {
			if try.CatchAll != nil {
				return nil, fmt.Errorf("isa: duplicate catchall for range [%d,%d)", start, end)
			}
			try.CatchAll = &ParsedHandler{Address: handler}
		} else {
			try.Handlers = append(try.Handlers, ParsedHandler{Type: c.Type, Address: handler})
		}
	}

	return m, nil
}

func findOrAppendTry(m *ParsedMethod, start, end int) *ParsedTry {
	for i := range m.Tries {
		if m.Tries[i].StartAddress == start && m.Tries[i].EndAddress == end {
			return &m.Tries[i]
		}
	}
	m.Tries = append(m.Tries, ParsedTry{StartAddress: start, EndAddress: end})
	return &m.Tries[len(m.Tries)-1]
}

// splitProto splits a method descriptor "(Lfoo;I)V" into its parameter
// descriptors and return descriptor, scanning by hand since a single
// descriptor may itself contain nested '(' only inside array/class
// syntax it never uses — parens only ever bracket the parameter list.
func splitProto(desc string) ([]string, string, error) {
	if len(desc) < 2 || desc[0] != '(' {
		return nil, "", fmt.Errorf("missing opening paren")
	}
	closeIdx := strings.IndexByte(desc, ')')
	if closeIdx < 0 {
		return nil, "", fmt.Errorf("missing closing paren")
	}
	inner := desc[1:closeIdx]
	ret := desc[closeIdx+1:]
	if ret == "" {
		return nil, "", fmt.Errorf("missing return type")
	}
	var params []string
	for len(inner) > 0 {
		d, rest, err := takeDescriptor(inner)
		if err != nil {
			return nil, "", err
		}
		params = append(params, d)
		inner = rest
	}
	return params, ret, nil
}

// takeDescriptor consumes one leading type descriptor from s (any number
// of '[' followed by either a single primitive letter or an 'L...;'
// class name), returning it and the remainder.
func takeDescriptor(s string) (string, string, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return "", "", fmt.Errorf("dangling array marker in %q", s)
	}
	switch s[i] {
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return "", "", fmt.Errorf("unterminated class descriptor in %q", s)
		}
		end += i + 1
		return s[:end], s[end:], nil
	case 'Z', 'B', 'C', 'S', 'I', 'F', 'J', 'D':
		return s[:i+1], s[i+1:], nil
	default:
		return "", "", fmt.Errorf("unrecognized descriptor start %q", s[i:])
	}
}

func parameterRegisterWidth(params []string) int {
	n := 0
	for _, p := range params {
		n++
		if p == "J" || p == "D" {
			n++
		}
	}
	return n
}

// rawEntry is one instruction or payload pseudo-instruction as scanned
// from the body text, before branch/switch targets are resolved to
// offsets (they start out as the label name, carried in target/targets).
type rawEntry struct {
	label   string
	instr   *Instruction
	target  string   // symbolic branch/fill-array-data/switch-payload target
	targets []string // symbolic packed/sparse-switch payload target list
}

// scanBody turns the raw ".code ... .end-method" block into an ordered
// instruction list and a label->address table, hand-scanning line by
// line: the structural grammar above stops at the method header because
// the operand shapes of ~100 distinct mnemonics don't share enough
// syntax for one participle rule to carry cleanly, whereas a line
// scanner plus a per-opcode-family switch (scanInstruction below) mirrors
// how the verifier itself dispatches per opcode family.
func scanBody(body string) ([]rawEntry, map[string]int, error) {
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, ".code")
	body = strings.TrimSuffix(strings.TrimSpace(body), ".end-method")

	var entries []rawEntry
	pendingLabel := ""

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, ok := strings.CutSuffix(line, ":"); ok && !strings.ContainsAny(name, " \t{}") {
			pendingLabel = name
			continue
		}

		entry, err := scanLine(line)
		if err != nil {
			return nil, nil, fmt.Errorf("isa: %q: %w", line, err)
		}
		entry.label = pendingLabel
		pendingLabel = ""
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	addr := 0
	for i := range entries {
		entries[i].instr.Address = addr
		entries[i].instr.Index = i
		addr += entries[i].instr.Size()
	}

	labels := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.label != "" {
			labels[e.label] = e.instr.Address
		}
	}
	return entries, labels, nil
}

// resolveTargets fills in every symbolic branch/switch/fill-array-data
// reference now that every instruction has a final address.
func resolveTargets(entries []rawEntry) error {
	labels := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.label != "" {
			labels[e.label] = e.instr.Address
		}
	}
	resolve := func(name string) (int, error) {
		addr, ok := labels[name]
		if !ok {
			return 0, fmt.Errorf("undefined label %q", name)
		}
		return addr, nil
	}

	// switchSiteOf maps a payload's own label to the address of the
	// packed-switch/sparse-switch instruction that references it:
	// SwitchOffsets is defined relative to that instruction, not to the
	// payload's own address (see Instruction.SwitchOffsets).
	switchSiteOf := make(map[string]int)
	for _, e := range entries {
		if (e.instr.Op == OpPackedSwitch || e.instr.Op == OpSparseSwitch) && e.target != "" {
			switchSiteOf[e.target] = e.instr.Address
		}
	}

	for _, e := range entries {
		switch e.instr.Op {
		case OpGoto, OpIfEq, OpIfNe, OpIfLt, OpIfGe, OpIfGt, OpIfLe,
			OpIfEqz, OpIfNez, OpIfLtz, OpIfGez, OpIfGtz, OpIfLez,
			OpPackedSwitch, OpSparseSwitch, OpFillArrayData:
			addr, err := resolve(e.target)
			if err != nil {
				return err
			}
			e.instr.Literal = int64(addr - e.instr.Address)
		case OpPackedSwitchPayload, OpSparseSwitchPayload:
			siteAddr, ok := switchSiteOf[e.label]
			if !ok {
				return fmt.Errorf("payload at label %q is never referenced by a packed-switch/sparse-switch", e.label)
			}
			for i, t := range e.targets {
				addr, err := resolve(t)
				if err != nil {
					return err
				}
				e.instr.SwitchOffsets[i] = int32(addr - siteAddr)
			}
		}
	}
	return nil
}

func scanLine(line string) (rawEntry, error) {
	mnemonic, rest, _ := strings.Cut(line, " ")
	mnemonic = strings.TrimSpace(mnemonic)
	rest = strings.TrimSpace(rest)

	if strings.HasPrefix(mnemonic, ".") {
		return scanPayload(mnemonic, rest)
	}

	operands := splitOperands(rest)
	op := Op(mnemonic)
	if meta := Meta(op); meta.Name != "" {
		return scanFixedOp(op, operands)
	}
	if spec, ok := arithMnemonics[mnemonic]; ok {
		return scanArith(spec, operands)
	}
	return rawEntry{}, fmt.Errorf("unrecognized mnemonic %q", mnemonic)
}

// splitOperands splits a comma-separated operand list, treating commas
// inside {...} (register lists) and "..." (string literals) as not
// top-level.
func splitOperands(s string) []string {
	var out []string
	depth := 0
	inString := false
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
			}
		case ',':
			if !inString && depth == 0 {
				out = append(out, strings.TrimSpace(s[last:i]))
				last = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func reg(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != 'v' {
		return 0, fmt.Errorf("expected a register, got %q", s)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return 0, fmt.Errorf("expected a register, got %q", s)
	}
	return n, nil
}

func number(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "#"))
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 64)
		return v, err
	}
	return strconv.ParseInt(s, 10, 64)
}

// regList parses a brace-delimited register operand: either an explicit
// list "{v0, v1, v2}" or a range "{v2 .. v5}" (filled-new-array/range and
// invoke-*/range forms).
func regList(s string) (explicit []int, rangeStart, rangeCount int, isRange bool, err error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, 0, 0, false, fmt.Errorf("expected a {register list}, got %q", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil, 0, 0, false, nil
	}
	if strings.Contains(inner, "..") {
		parts := strings.SplitN(inner, "..", 2)
		lo, err := reg(parts[0])
		if err != nil {
			return nil, 0, 0, false, err
		}
		hi, err := reg(parts[1])
		if err != nil {
			return nil, 0, 0, false, err
		}
		return nil, lo, hi - lo + 1, true, nil
	}
	for _, p := range strings.Split(inner, ",") {
		r, err := reg(p)
		if err != nil {
			return nil, 0, 0, false, err
		}
		explicit = append(explicit, r)
	}
	return explicit, 0, 0, false, nil
}

// fieldOrMethodRef splits "Lowner;->name:type" or "Lowner;->name(params)ret".
func fieldOrMethodRef(s string) (owner, name, rest string, err error) {
	arrow := strings.Index(s, "->")
	if arrow < 0 {
		return "", "", "", fmt.Errorf("expected Lowner;->member, got %q", s)
	}
	owner = s[:arrow]
	member := s[arrow+2:]
	if i := strings.IndexAny(member, ":("); i >= 0 {
		return owner, member[:i], member[i:], nil
	}
	return "", "", "", fmt.Errorf("malformed member reference %q", s)
}

// scanFixedOp parses the operands of every opcode whose Op string equals
// its own mnemonic (everything but the collapsed unop/binop family,
// handled by scanArith). Operand counts vary per family; a handful of
// two- and three-operand cases index operands directly rather than
// through the need() guard below; malformed lines short enough to
// underflow those index expressions are caught by the recover and turned
// into a regular parse error instead of a panic.
func scanFixedOp(op Op, operands []string) (result rawEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: malformed operands %v: %v", op, operands, r)
		}
	}()

	in := &Instruction{Op: op, Src1: -1, Src2: -1, Dest: -1}
	e := rawEntry{instr: in}

	need := func(i int) (string, error) {
		if i >= len(operands) {
			return "", fmt.Errorf("%s: expected at least %d operands, got %d", op, i+1, len(operands))
		}
		return operands[i], nil
	}

	switch op {
	case OpNop, OpReturnVoid:
		// no operands

	case OpMove, OpMoveWide, OpMoveObject:
		d, err := need(0)
		if err != nil {
			return e, err
		}
		s, err := need(1)
		if err != nil {
			return e, err
		}
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		if in.Src1, err = reg(s); err != nil {
			return e, err
		}

	case OpMoveResult, OpMoveResultWide, OpMoveResultObject, OpMoveException,
		OpThrow, OpMonitorEnter, OpMonitorExit:
		d, err := need(0)
		if err != nil {
			return e, err
		}
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		in.Src1 = in.Dest

	case OpArrayLength:
		d, s := operands[0], operands[1]
		var err error
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		if in.Src1, err = reg(s); err != nil {
			return e, err
		}

	case OpReturn, OpReturnWide, OpReturnObject:
		s, err := need(0)
		if err != nil {
			return e, err
		}
		if in.Src1, err = reg(s); err != nil {
			return e, err
		}

	case OpConst, OpConstWide:
		d, err := need(0)
		if err != nil {
			return e, err
		}
		v, err := need(1)
		if err != nil {
			return e, err
		}
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		if in.Literal, err = number(v); err != nil {
			return e, err
		}

	case OpConstString:
		d, err := need(0)
		if err != nil {
			return e, err
		}
		lit, err := need(1)
		if err != nil {
			return e, err
		}
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		in.StringLiteral = lit

	case OpConstClass, OpCheckCast, OpNewInstance:
		d, err := need(0)
		if err != nil {
			return e, err
		}
		t, err := need(1)
		if err != nil {
			return e, err
		}
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		in.Src1 = in.Dest
		in.TypeDescriptor = t

	case OpInstanceOf:
		d, s, t := operands[0], operands[1], operands[2]
		var err error
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		if in.Src1, err = reg(s); err != nil {
			return e, err
		}
		in.TypeDescriptor = t

	case OpNewArray:
		d, s, t := operands[0], operands[1], operands[2]
		var err error
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		if in.Src1, err = reg(s); err != nil {
			return e, err
		}
		in.TypeDescriptor = t

	case OpFilledNewArray, OpFilledNewArrayRange:
		regs, rs, rc, isRange, err := regList(operands[0])
		if err != nil {
			return e, err
		}
		in.Regs, in.RangeStart, in.RangeCount = regs, rs, rc
		_ = isRange
		in.TypeDescriptor = operands[1]

	case OpFillArrayData:
		s, err := need(0)
		if err != nil {
			return e, err
		}
		t, err := need(1)
		if err != nil {
			return e, err
		}
		if in.Src1, err = reg(s); err != nil {
			return e, err
		}
		e.target = t

	case OpGoto, OpPackedSwitch, OpSparseSwitch:
		var t string
		var err error
		if op == OpGoto {
			t, err = need(0)
		} else {
			s, err2 := need(0)
			if err2 != nil {
				return e, err2
			}
			if in.Src1, err = reg(s); err != nil {
				return e, err
			}
			t, err = need(1)
		}
		if err != nil {
			return e, err
		}
		e.target = t

	case OpCmplFloat, OpCmpgFloat, OpCmplDouble, OpCmpgDouble, OpCmpLong:
		d, a, b := operands[0], operands[1], operands[2]
		var err error
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		if in.Src1, err = reg(a); err != nil {
			return e, err
		}
		if in.Src2, err = reg(b); err != nil {
			return e, err
		}

	case OpIfEq, OpIfNe, OpIfLt, OpIfGe, OpIfGt, OpIfLe:
		a, b, t := operands[0], operands[1], operands[2]
		var err error
		if in.Src1, err = reg(a); err != nil {
			return e, err
		}
		if in.Src2, err = reg(b); err != nil {
			return e, err
		}
		e.target = t

	case OpIfEqz, OpIfNez, OpIfLtz, OpIfGez, OpIfGtz, OpIfLez:
		a, t := operands[0], operands[1]
		var err error
		if in.Src1, err = reg(a); err != nil {
			return e, err
		}
		e.target = t

	case OpAGet, OpAGetWide, OpAGetObject, OpAGetBoolean, OpAGetByte, OpAGetChar, OpAGetShort:
		d, arr, idx := operands[0], operands[1], operands[2]
		var err error
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		if in.Src1, err = reg(arr); err != nil {
			return e, err
		}
		if in.Src2, err = reg(idx); err != nil {
			return e, err
		}

	case OpAPut, OpAPutWide, OpAPutObject, OpAPutBoolean, OpAPutByte, OpAPutChar, OpAPutShort:
		val, arr, idx := operands[0], operands[1], operands[2]
		var err error
		if in.Dest, err = reg(val); err != nil {
			return e, err
		}
		if in.Src1, err = reg(arr); err != nil {
			return e, err
		}
		if in.Src2, err = reg(idx); err != nil {
			return e, err
		}

	case OpIGet, OpIGetWide, OpIGetObject, OpIGetBoolean, OpIGetByte, OpIGetChar, OpIGetShort:
		d, obj, ref := operands[0], operands[1], operands[2]
		var err error
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		if in.Src1, err = reg(obj); err != nil {
			return e, err
		}
		owner, name, rest, err := fieldOrMethodRef(ref)
		if err != nil {
			return e, err
		}
		in.FieldOwner, in.FieldName, in.FieldType = owner, name, strings.TrimPrefix(rest, ":")

	case OpIPut, OpIPutWide, OpIPutObject, OpIPutBoolean, OpIPutByte, OpIPutChar, OpIPutShort:
		val, obj, ref := operands[0], operands[1], operands[2]
		var err error
		if in.Dest, err = reg(val); err != nil {
			return e, err
		}
		if in.Src1, err = reg(obj); err != nil {
			return e, err
		}
		owner, name, rest, err := fieldOrMethodRef(ref)
		if err != nil {
			return e, err
		}
		in.FieldOwner, in.FieldName, in.FieldType = owner, name, strings.TrimPrefix(rest, ":")

	case OpSGet, OpSGetWide, OpSGetObject, OpSGetBoolean, OpSGetByte, OpSGetChar, OpSGetShort:
		d, ref := operands[0], operands[1]
		var err error
		if in.Dest, err = reg(d); err != nil {
			return e, err
		}
		owner, name, rest, err := fieldOrMethodRef(ref)
		if err != nil {
			return e, err
		}
		in.FieldOwner, in.FieldName, in.FieldType = owner, name, strings.TrimPrefix(rest, ":")

	case OpSPut, OpSPutWide, OpSPutObject, OpSPutBoolean, OpSPutByte, OpSPutChar, OpSPutShort:
		val, ref := operands[0], operands[1]
		var err error
		if in.Dest, err = reg(val); err != nil {
			return e, err
		}
		owner, name, rest, err := fieldOrMethodRef(ref)
		if err != nil {
			return e, err
		}
		in.FieldOwner, in.FieldName, in.FieldType = owner, name, strings.TrimPrefix(rest, ":")

	case OpInvokeVirtual, OpInvokeSuper, OpInvokeDirect, OpInvokeStatic, OpInvokeInterface,
		OpInvokeVirtualRange, OpInvokeSuperRange, OpInvokeDirectRange, OpInvokeStaticRange, OpInvokeInterfaceRange:
		regs, rs, rc, _, err := regList(operands[0])
		if err != nil {
			return e, err
		}
		in.Regs, in.RangeStart, in.RangeCount = regs, rs, rc
		owner, name, rest, err := fieldOrMethodRef(operands[1])
		if err != nil {
			return e, err
		}
		params, ret, err := splitProto(rest)
		if err != nil {
			return e, fmt.Errorf("parsing method descriptor %q: %w", rest, err)
		}
		in.MethodOwner, in.MethodName, in.MethodParams, in.MethodReturn = owner, name, params, ret

	default:
		return e, fmt.Errorf("unhandled fixed opcode %s", op)
	}

	return e, nil
}

// arithSpec names how a collapsed unop/binop mnemonic maps onto
// ArithKind/Width/SrcWidth.
type arithSpec struct {
	arith    ArithKind
	width    Width
	srcWidth Width
	unary    bool
}

var widthSuffix = map[string]Width{
	"int": WidthInt32, "long": WidthInt64, "float": WidthFloat32, "double": WidthFloat64,
}

var arithMnemonics = buildArithMnemonics()

func buildArithMnemonics() map[string]arithSpec {
	m := map[string]arithSpec{}
	binary := []ArithKind{ArithAdd, ArithSub, ArithRSub, ArithMul, ArithDiv, ArithRem,
		ArithAnd, ArithOr, ArithXor, ArithShl, ArithShr, ArithUshr}
	for _, k := range binary {
		for suffix, w := range widthSuffix {
			m[string(k)+"-"+suffix] = arithSpec{arith: k, width: w}
		}
	}
	for _, suffix := range []string{"int", "long", "float", "double"} {
		w := widthSuffix[suffix]
		m["neg-"+suffix] = arithSpec{arith: ArithNeg, width: w, unary: true}
	}
	m["not-int"] = arithSpec{arith: ArithNot, width: WidthInt32, unary: true}
	m["not-long"] = arithSpec{arith: ArithNot, width: WidthInt64, unary: true}
	for _, from := range []string{"int", "long", "float", "double"} {
		for _, to := range []string{"int", "long", "float", "double"} {
			if from == to {
				continue
			}
			m[from+"-to-"+to] = arithSpec{arith: ArithConvert, width: widthSuffix[to], srcWidth: widthSuffix[from], unary: true}
		}
	}
	return m
}

func scanArith(spec arithSpec, operands []string) (result rawEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed arithmetic operands %v: %v", operands, r)
		}
	}()
	op := OpBinaryOp
	if spec.unary {
		op = OpUnaryOp
	}
	in := &Instruction{Op: op, Arith: spec.arith, Width: spec.width, SrcWidth: spec.srcWidth, Src2: -1}
	if in.Dest, err = reg(operands[0]); err != nil {
		return rawEntry{}, err
	}
	if in.Src1, err = reg(operands[1]); err != nil {
		return rawEntry{}, err
	}
	if !spec.unary {
		if strings.HasPrefix(strings.TrimSpace(operands[2]), "#") {
			in.HasLiteralOperand = true
			if in.LiteralOperand, err = number(operands[2]); err != nil {
				return rawEntry{}, err
			}
		} else {
			if in.Src2, err = reg(operands[2]); err != nil {
				return rawEntry{}, err
			}
		}
	}
	return rawEntry{instr: in}, nil
}

// scanPayload parses one of the three payload pseudo-instruction
// directive lines, e.g.:
//
//	.packed-switch-payload first=0 targets=a,b,c
//	.sparse-switch-payload pairs=5:a,9:b
//	.fill-array-data-payload width=4 data=1,2,3,4
func scanPayload(directive, rest string) (rawEntry, error) {
	fields := strings.Fields(rest)
	kv := map[string]string{}
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return rawEntry{}, fmt.Errorf("malformed payload field %q", f)
		}
		kv[k] = v
	}

	switch directive {
	case ".packed-switch-payload":
		first, err := number(kv["first"])
		if err != nil {
			return rawEntry{}, fmt.Errorf("packed-switch-payload: %w", err)
		}
		targets := strings.Split(kv["targets"], ",")
		in := &Instruction{Op: OpPackedSwitchPayload, PackedFirstKey: int32(first), SwitchOffsets: make([]int32, len(targets))}
		return rawEntry{instr: in, targets: targets}, nil

	case ".sparse-switch-payload":
		pairs := strings.Split(kv["pairs"], ",")
		in := &Instruction{Op: OpSparseSwitchPayload}
		var targets []string
		for _, p := range pairs {
			ks, label, ok := strings.Cut(p, ":")
			if !ok {
				return rawEntry{}, fmt.Errorf("malformed sparse-switch pair %q", p)
			}
			k, err := number(ks)
			if err != nil {
				return rawEntry{}, fmt.Errorf("sparse-switch-payload: %w", err)
			}
			in.SparseKeys = append(in.SparseKeys, int32(k))
			targets = append(targets, label)
		}
		in.SwitchOffsets = make([]int32, len(targets))
		return rawEntry{instr: in, targets: targets}, nil

	case ".fill-array-data-payload":
		width, err := number(kv["width"])
		if err != nil {
			return rawEntry{}, fmt.Errorf("fill-array-data-payload: %w", err)
		}
		data := strings.Split(kv["data"], ",")
		in := &Instruction{Op: OpFillArrayDataPayload, ElementWidth: int(width), NumElements: len(data)}
		return rawEntry{instr: in}, nil

	default:
		return rawEntry{}, fmt.Errorf("unrecognized directive %q", directive)
	}
}
