// Package luacheck reports syntax errors in Lua sources without running
// them. It compiles with the same gopher-lua front end the scripts would
// be loaded with, so what passes here also loads.
package luacheck

import (
	"errors"
	"fmt"
	"log"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Diagnostic is one problem in a source. Line and Column are 1-based;
// Column is 0 when only the line is known and Line is 0 at end of input.
type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
	Near    string `json:"near,omitempty"`
}

// Check parses and compiles source. name is used in messages only.
func Check(name, source string) []Diagnostic {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return []Diagnostic{fromParse(err)}
	}
	if _, err := lua.Compile(chunk, name); err != nil {
		var ce *lua.CompileError
		if errors.As(err, &ce) {
			return []Diagnostic{{Line: ce.Line, Message: ce.Message}}
		}
		return []Diagnostic{{Message: err.Error()}}
	}
	return nil
}

func fromParse(err error) Diagnostic {
	var pe *parse.Error
	if !errors.As(err, &pe) {
		return Diagnostic{Message: strings.TrimSpace(err.Error())}
	}
	d := Diagnostic{Message: pe.Message, Near: pe.Token}
	if pe.Pos.Line != parse.EOF {
		d.Line = pe.Pos.Line
		d.Column = pe.Pos.Column
	}
	return d
}

// String formats d the way compilers do: name:line:col: message.
func (d Diagnostic) String(name string) string {
	var pos string
	switch {
	case d.Line == 0:
		pos = ": at end of input"
	case d.Column == 0:
		pos = fmt.Sprintf(":%d", d.Line)
	default:
		pos = fmt.Sprintf(":%d:%d", d.Line, d.Column)
	}
	msg := fmt.Sprintf("%s%s: %s", name, pos, d.Message)
	if d.Near != "" {
		msg += fmt.Sprintf(" near '%s'", d.Near)
	}
	return msg
}

// CheckAll runs Check over several named sources and logs each problem.
// It returns the number of sources with at least one diagnostic.
func CheckAll(sources map[string]string, order []string) (failed int, report []string) {
	for _, name := range order {
		diags := Check(name, sources[name])
		if len(diags) > 0 {
			failed++
		}
		for _, d := range diags {
			line := d.String(name)
			log.Printf("LUA: %s", line)
			report = append(report, line)
		}
	}
	return failed, report
}
