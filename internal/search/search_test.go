package search

import (
	"errors"
	"testing"
)

func TestFindAllModes(t *testing.T) {
	text := "local foo = Foo.bar(foobar) -- foo"
	tests := []struct {
		name string
		term string
		opts Options
		want []Match
	}{
		{"case-insensitive literal", "foo", Options{}, []Match{{6, 9}, {12, 15}, {20, 23}, {31, 34}}},
		{"case-sensitive", "foo", Options{CaseSensitive: true}, []Match{{6, 9}, {20, 23}, {31, 34}}},
		{"whole word", "foo", Options{WholeWord: true}, []Match{{6, 9}, {12, 15}, {31, 34}}},
		{"literal dot", ".", Options{}, []Match{{15, 16}}},
		{"regex", `f\w+r`, Options{Regex: true}, []Match{{20, 26}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Compile(tt.term, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			got, err := m.FindAll(text)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("matches = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("matches = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRuneOffsets(t *testing.T) {
	m, _ := Compile("b", Options{})
	got, _ := m.FindAll("éab")
	if len(got) != 1 || got[0] != (Match{2, 3}) {
		t.Fatalf("matches = %v, want [{2 3}]", got)
	}
}

func TestNextPrevWrap(t *testing.T) {
	text := "x a x a x"
	m, _ := Compile("x", Options{})

	next, ok, _ := m.Next(text, 1)
	if !ok || next.Start != 4 {
		t.Fatalf("Next(1) = %v", next)
	}
	next, ok, _ = m.Next(text, 9)
	if !ok || next.Start != 0 {
		t.Fatalf("Next wrap = %v, want start 0", next)
	}

	prev, ok, _ := m.Prev(text, 4)
	if !ok || prev.Start != 0 {
		t.Fatalf("Prev(4) = %v", prev)
	}
	prev, ok, _ = m.Prev(text, 0)
	if !ok || prev.Start != 8 {
		t.Fatalf("Prev wrap = %v, want start 8", prev)
	}

	none, _ := Compile("zzz", Options{})
	if _, ok, _ := none.Next(text, 0); ok {
		t.Fatal("Next found a match for absent term")
	}
}

func TestReplace(t *testing.T) {
	m, _ := Compile("print", Options{})
	out, n, err := m.ReplaceAll("print(1) print(2)", "log")
	if err != nil {
		t.Fatal(err)
	}
	if out != "log(1) log(2)" || n != 2 {
		t.Fatalf("ReplaceAll = %q, %d", out, n)
	}

	out, err = m.ReplaceAt("print(1) print(2)", 9, "log")
	if err != nil {
		t.Fatal(err)
	}
	if out != "print(1) log(2)" {
		t.Fatalf("ReplaceAt = %q", out)
	}
}

func TestReplaceLiteralKeepsDollar(t *testing.T) {
	m, _ := Compile("a", Options{})
	out, _, err := m.ReplaceAll("a b a", "$1")
	if err != nil {
		t.Fatal(err)
	}
	if out != "$1 b $1" {
		t.Fatalf("out = %q", out)
	}
}

func TestReplaceRegexGroups(t *testing.T) {
	m, _ := Compile(`(\w+) = (\d+)`, Options{Regex: true})
	out, n, err := m.ReplaceAll("x = 1\ny = 2", "$2 = $1")
	if err != nil {
		t.Fatal(err)
	}
	if out != "1 = x\n2 = y" || n != 2 {
		t.Fatalf("out = %q n = %d", out, n)
	}
}

func TestReplaceAtAfterMultibyte(t *testing.T) {
	m, _ := Compile("x", Options{})
	out, err := m.ReplaceAt("éx éx", 4, "y")
	if err != nil {
		t.Fatal(err)
	}
	if out != "éx éy" {
		t.Fatalf("out = %q", out)
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := Compile("", Options{}); !errors.Is(err, ErrEmptyTerm) {
		t.Fatalf("err = %v, want ErrEmptyTerm", err)
	}
	if _, err := Compile("(", Options{Regex: true}); !errors.Is(err, ErrBadPattern) {
		t.Fatalf("err = %v, want ErrBadPattern", err)
	}
	if _, err := Compile("(", Options{}); err != nil {
		t.Fatalf("literal ( should compile: %v", err)
	}
}

func TestZeroLengthMatchesSkipped(t *testing.T) {
	m, _ := Compile(`a*`, Options{Regex: true})
	got, err := m.FindAll("baab")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != (Match{1, 3}) {
		t.Fatalf("matches = %v", got)
	}
}

func TestIsMatch(t *testing.T) {
	m, _ := Compile("foo", Options{})
	if ok, _ := m.IsMatch("a foo", 2, 5); !ok {
		t.Fatal("IsMatch(2,5) = false")
	}
	if ok, _ := m.IsMatch("a foo", 1, 5); ok {
		t.Fatal("IsMatch(1,5) = true")
	}
}
