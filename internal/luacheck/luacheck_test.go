package luacheck

import (
	"strings"
	"testing"
)

func TestCheckValid(t *testing.T) {
	src := `
local function greet(name)
  return "hello " .. name
end
for i = 1, 3 do print(greet(tostring(i))) end
`
	if diags := Check("ok.lua", src); len(diags) != 0 {
		t.Fatalf("diagnostics for valid source: %+v", diags)
	}
}

func TestCheckSyntaxErrorLine(t *testing.T) {
	diags := Check("bad.lua", "local a = 1\nlocal = 2\n")
	if len(diags) != 1 {
		t.Fatalf("diags = %+v", diags)
	}
	if diags[0].Line != 2 {
		t.Fatalf("line = %d, want 2", diags[0].Line)
	}
	if diags[0].Message == "" {
		t.Fatal("empty message")
	}
}

func TestCheckUnterminatedString(t *testing.T) {
	diags := Check("str.lua", "print(\"oops)\n")
	if len(diags) != 1 || !strings.Contains(diags[0].Message, "unterminated string") {
		t.Fatalf("diags = %+v", diags)
	}
}

func TestDiagnosticString(t *testing.T) {
	cases := []struct {
		d    Diagnostic
		want string
	}{
		{Diagnostic{Line: 3, Column: 7, Message: "syntax error", Near: "="}, "a.lua:3:7: syntax error near '='"},
		{Diagnostic{Line: 3, Message: "no visible label"}, "a.lua:3: no visible label"},
		{Diagnostic{Message: "syntax error"}, "a.lua: at end of input: syntax error"},
	}
	for _, c := range cases {
		if got := c.d.String("a.lua"); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestCheckAll(t *testing.T) {
	sources := map[string]string{
		"good.lua": "return 1",
		"bad.lua":  "if then",
	}
	failed, report := CheckAll(sources, []string{"good.lua", "bad.lua"})
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	if len(report) != 1 || !strings.HasPrefix(report[0], "bad.lua") {
		t.Fatalf("report = %v", report)
	}
}
