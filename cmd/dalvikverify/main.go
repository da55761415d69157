// Package main provides the dalvikverify CLI application.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/dexverify/dalvikverify/internal/cfg"
	"github.com/dexverify/dalvikverify/internal/classoracle"
	"github.com/dexverify/dalvikverify/internal/diagnostics"
	"github.com/dexverify/dalvikverify/internal/isa"
	"github.com/dexverify/dalvikverify/internal/method"
	"github.com/dexverify/dalvikverify/internal/regtype"
	"github.com/dexverify/dalvikverify/internal/verifier"
)

// CLI represents the command-line interface structure.
type CLI struct {
	Verify VerifyCmd `cmd:"" help:"Verify a .dsmali method against the register-type lattice."`
	Info   InfoCmd   `cmd:"" help:"Display a parsed method's header information."`
	Disasm DisasmCmd `cmd:"" help:"Print a method's parsed instruction stream."`
}

// VerifyCmd runs the dataflow verifier end to end.
type VerifyCmd struct {
	Method    string `arg:"" type:"existingfile" help:"Path to a .dsmali method file."`
	Classpath string `help:"Path to a classpath YAML file." type:"path"`
	Verbose   bool   `short:"v" help:"Print the per-instruction register table."`
}

// Run executes the verify command.
func (c *VerifyCmd) Run() error {
	m, graph, err := loadAndAnalyze(c.Method, c.Classpath)
	if err != nil {
		if ae, ok := err.(*verifier.AnalysisError); ok {
			fmt.Printf("FAIL %s.%s\n", m.ContainingClass, m.MethodName)
			fmt.Printf("  %s\n", ae.Error())
			if c.Verbose && ae.Detail != "" {
				fmt.Printf("  registers at failure: %s\n", ae.Detail)
			}
			return nil
		}
		return err
	}

	fmt.Printf("OK %s.%s\n", m.ContainingClass, m.MethodName)
	if c.Verbose {
		for _, n := range graph.Nodes {
			fmt.Print(diagnostics.NodeState(graph, n))
		}
	}
	return nil
}

// InfoCmd displays a parsed method's header.
type InfoCmd struct {
	Method string `arg:"" type:"existingfile" help:"Path to a .dsmali method file."`
}

// Run executes the info command.
func (c *InfoCmd) Run() error {
	src, err := os.ReadFile(c.Method)
	if err != nil {
		return fmt.Errorf("dalvikverify: reading %s: %w", c.Method, err)
	}
	pm, err := isa.ParseMethod(string(src))
	if err != nil {
		return fmt.Errorf("dalvikverify: parsing %s: %w", c.Method, err)
	}

	flags := method.AccessFlags(pm.AccessFlags)
	fmt.Printf("Method Information:\n")
	fmt.Printf("  Class:       %s\n", pm.ContainingClass)
	fmt.Printf("  Name:        %s\n", pm.MethodName)
	fmt.Printf("  Parameters:  %s\n", strings.Join(pm.Parameters, ", "))
	fmt.Printf("  Return:      %s\n", pm.ReturnType)
	fmt.Printf("  Registers:   %d (%d parameter)\n", pm.RegisterCount, pm.ParameterRegisterCount)
	fmt.Printf("  Static:      %v\n", flags.IsStatic())
	fmt.Printf("  Constructor: %v\n", flags.IsConstructor())
	fmt.Printf("  Instructions: %d\n", len(pm.Instructions))
	fmt.Printf("  Try blocks:   %d\n", len(pm.Tries))
	return nil
}

// DisasmCmd prints the parsed instruction stream with hex addresses.
type DisasmCmd struct {
	Method string `arg:"" type:"existingfile" help:"Path to a .dsmali method file."`
}

// Run executes the disasm command.
func (c *DisasmCmd) Run() error {
	src, err := os.ReadFile(c.Method)
	if err != nil {
		return fmt.Errorf("dalvikverify: reading %s: %w", c.Method, err)
	}
	pm, err := isa.ParseMethod(string(src))
	if err != nil {
		return fmt.Errorf("dalvikverify: parsing %s: %w", c.Method, err)
	}

	fmt.Printf("%s.%s%s\n", pm.ContainingClass, pm.MethodName, protoString(pm))
	for _, in := range pm.Instructions {
		fmt.Printf("%s: %s\n", diagnostics.Addr(in.Address), disasmLine(in))
	}
	return nil
}

// protoString reconstructs the parenthesized descriptor a real
// disassembler prints beside the method name.
func protoString(pm *isa.ParsedMethod) string {
	return "(" + strings.Join(pm.Parameters, "") + ")" + pm.ReturnType
}

// regsOperand renders an invoke/filled-new-array register-list operand
// in whichever of its two encodings the instruction actually carries.
func regsOperand(in *isa.Instruction) string {
	if in.RangeCount > 0 {
		return fmt.Sprintf("{v%d..v%d}", in.RangeStart, in.RangeStart+in.RangeCount-1)
	}
	parts := make([]string, len(in.Regs))
	for i, r := range in.Regs {
		parts[i] = fmt.Sprintf("v%d", r)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// disasmLine renders one instruction's mnemonic and operands. A const
// line is annotated with its literal's classification as
// regtype.RegType.String() renders it, reusing the lattice's own labels
// rather than inventing a second vocabulary.
func disasmLine(in *isa.Instruction) string {
	switch {
	case isa.IsInvoke(in.Op):
		return fmt.Sprintf("%s %s, %s->%s(%s)%s",
			in.Op, regsOperand(in), in.MethodOwner, in.MethodName,
			strings.Join(in.MethodParams, ""), in.MethodReturn)
	case in.Op == isa.OpIGet || in.Op == isa.OpIPut:
		return fmt.Sprintf("%s v%d, v%d, %s->%s:%s", in.Op, in.Dest, in.Src1, in.FieldOwner, in.FieldName, in.FieldType)
	case in.Op == isa.OpSGet || in.Op == isa.OpSPut:
		return fmt.Sprintf("%s v%d, %s->%s:%s", in.Op, in.Dest, in.FieldOwner, in.FieldName, in.FieldType)
	case in.Op == isa.OpConstString:
		return fmt.Sprintf("%s v%d, %q", in.Op, in.Dest, in.StringLiteral)
	case in.Op == isa.OpFilledNewArray || in.Op == isa.OpFilledNewArrayRange:
		return fmt.Sprintf("%s %s, %s", in.Op, regsOperand(in), in.TypeDescriptor)
	case in.Op == isa.OpConstClass || in.Op == isa.OpCheckCast || in.Op == isa.OpNewInstance:
		return fmt.Sprintf("%s v%d, %s", in.Op, in.Dest, in.TypeDescriptor)
	case in.Op == isa.OpInstanceOf || in.Op == isa.OpNewArray:
		return fmt.Sprintf("%s v%d, v%d, %s", in.Op, in.Dest, in.Src1, in.TypeDescriptor)
	case in.Op == isa.OpConst:
		return fmt.Sprintf("%s v%d, #%d ; %s", in.Op, in.Dest, in.Literal, regtype.NewFactory().ForLiteral(in.Literal))
	case in.Op == isa.OpConstWide:
		return fmt.Sprintf("%s v%d, #%d", in.Op, in.Dest, in.Literal)
	case in.Op == isa.OpGoto:
		return fmt.Sprintf("%s +%d", in.Op, in.Literal)
	case in.Op == isa.OpPackedSwitch || in.Op == isa.OpSparseSwitch || in.Op == isa.OpFillArrayData:
		return fmt.Sprintf("%s v%d, +%d", in.Op, in.Src1, in.Literal)
	case in.Op == isa.OpNop || in.Op == isa.OpReturnVoid:
		return string(in.Op)
	case in.Op == isa.OpPackedSwitchPayload || in.Op == isa.OpSparseSwitchPayload || in.Op == isa.OpFillArrayDataPayload:
		return fmt.Sprintf(".%s", in.Op)
	case in.Op == isa.OpBinaryOp:
		if in.HasLiteralOperand {
			return fmt.Sprintf("%s.%s v%d, v%d, #%d", in.Arith, in.Width, in.Dest, in.Src1, in.LiteralOperand)
		}
		return fmt.Sprintf("%s.%s v%d, v%d, v%d", in.Arith, in.Width, in.Dest, in.Src1, in.Src2)
	case in.Op == isa.OpUnaryOp:
		return fmt.Sprintf("%s.%s v%d, v%d", in.Arith, in.Width, in.Dest, in.Src1)
	case in.Op == isa.OpReturn || in.Op == isa.OpReturnWide || in.Op == isa.OpReturnObject ||
		in.Op == isa.OpThrow || in.Op == isa.OpMonitorEnter || in.Op == isa.OpMonitorExit ||
		in.Op == isa.OpMoveResult || in.Op == isa.OpMoveResultWide || in.Op == isa.OpMoveResultObject || in.Op == isa.OpMoveException:
		return fmt.Sprintf("%s v%d", in.Op, in.Src1)
	case in.Op == isa.OpMove || in.Op == isa.OpMoveWide || in.Op == isa.OpMoveObject || in.Op == isa.OpArrayLength:
		return fmt.Sprintf("%s v%d, v%d", in.Op, in.Dest, in.Src1)
	case in.Op == isa.OpIfEqz || in.Op == isa.OpIfNez || in.Op == isa.OpIfLtz || in.Op == isa.OpIfGez ||
		in.Op == isa.OpIfGtz || in.Op == isa.OpIfLez:
		return fmt.Sprintf("%s v%d, +%d", in.Op, in.Src1, in.Literal)
	case in.Op == isa.OpIfEq || in.Op == isa.OpIfNe || in.Op == isa.OpIfLt || in.Op == isa.OpIfGe ||
		in.Op == isa.OpIfGt || in.Op == isa.OpIfLe:
		return fmt.Sprintf("%s v%d, v%d, +%d", in.Op, in.Src1, in.Src2, in.Literal)
	default:
		return fmt.Sprintf("%s v%d, v%d, v%d", in.Op, in.Dest, in.Src1, in.Src2)
	}
}

// loadAndAnalyze parses a .dsmali file, converts it into a
// method.EncodedMethod, and runs the verifier. The conversion lives
// here rather than in internal/isa to avoid the import cycle noted on
// isa.ParsedMethod: only a caller that imports both internal/isa and
// internal/method can build the bridge.
func loadAndAnalyze(methodPath, classpathPath string) (*method.EncodedMethod, *cfg.Graph, error) {
	src, err := os.ReadFile(methodPath)
	if err != nil {
		return nil, nil, fmt.Errorf("dalvikverify: reading %s: %w", methodPath, err)
	}
	pm, err := isa.ParseMethod(string(src))
	if err != nil {
		return nil, nil, fmt.Errorf("dalvikverify: parsing %s: %w", methodPath, err)
	}

	oracle := classoracle.NewOracle()
	if classpathPath != "" {
		if err := classoracle.LoadClasspath(oracle, classpathPath); err != nil {
			return nil, nil, err
		}
	}

	m := toEncodedMethod(pm)
	graph, err := verifier.Analyze(m, oracle, regtype.NewFactory())
	return m, graph, err
}

// toEncodedMethod copies an isa.ParsedMethod's fields into the shape
// internal/verifier consumes.
func toEncodedMethod(pm *isa.ParsedMethod) *method.EncodedMethod {
	code := &method.CodeItem{
		RegisterCount: pm.RegisterCount,
		Instructions:  pm.Instructions,
	}
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

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("dalvikverify"),
		kong.Description("A Dalvik bytecode method verifier."),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
