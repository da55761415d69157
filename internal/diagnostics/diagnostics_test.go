package diagnostics

import (
	"strings"
	"testing"

	"github.com/dexverify/dalvikverify/internal/regtype"
)

func TestAddr(t *testing.T) {
	if got := Addr(0); got != "0000" {
		t.Errorf("Addr(0) = %q, want %q", got, "0000")
	}
	if got := Addr(0x1a); got != "001a" {
		t.Errorf("Addr(0x1a) = %q, want %q", got, "001a")
	}
}

func TestRegisterVector(t *testing.T) {
	f := regtype.NewFactory()
	regs := []regtype.RegType{f.Simple(regtype.Integer), f.Simple(regtype.Unknown)}
	got := RegisterVector(regs)
	if !strings.Contains(got, "v0=") || !strings.Contains(got, "v1=") {
		t.Errorf("RegisterVector(%v) = %q, want v0=/v1= entries", regs, got)
	}
}

func TestDump(t *testing.T) {
	f := regtype.NewFactory()
	out := Dump(f.Simple(regtype.Integer))
	if out == "" {
		t.Error("Dump returned empty output")
	}
}
