package analysis

import (
	"reflect"
	"testing"
)

func TestWhitespace_SplitsOnRuns(t *testing.T) {
	a := NewWhitespace()
	got := Terms(a, "  a  b\tc\n a ")
	want := []string{"a", "b", "c", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("terms: got %v, want %v", got, want)
	}
}

func TestWhitespace_NoCaseFolding(t *testing.T) {
	a := NewWhitespace()
	got := Terms(a, "Go go GO")
	want := []string{"Go", "go", "GO"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("terms: got %v, want %v", got, want)
	}
}

func TestWhitespace_Positions(t *testing.T) {
	tokens := NewWhitespace().Analyze("x y z")
	for i, tp := range tokens {
		if tp.Position != uint64(i) {
			t.Errorf("position %d: got %d", i, tp.Position)
		}
	}
}

func TestWhitespace_Empty(t *testing.T) {
	if tokens := NewWhitespace().Analyze("   "); len(tokens) != 0 {
		t.Errorf("expected no tokens, got %d", len(tokens))
	}
}

func TestSimple_LowercasesAndSplits(t *testing.T) {
	got := Terms(NewSimple(), "Hello, World! 42x")
	want := []string{"hello", "world", "42x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("terms: got %v, want %v", got, want)
	}
}

func TestStopWords_Count(t *testing.T) {
	sw := NewStopWords("the", "of", "")
	tokens := NewWhitespace().Analyze("the design of the system")
	if n := sw.Count(tokens); n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
	if sw.Contains("") {
		t.Error("empty word should not be stored")
	}
}

func TestStopWords_NilCountsEverything(t *testing.T) {
	var sw StopWords
	tokens := NewWhitespace().Analyze("a b c")
	if n := sw.Count(tokens); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestByName(t *testing.T) {
	for name, want := range map[string]string{"": "*analysis.Whitespace", "whitespace": "*analysis.Whitespace", "Simple": "*analysis.Simple"} {
		a, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if got := reflect.TypeOf(a).String(); got != want {
			t.Errorf("ByName(%q): got %s, want %s", name, got, want)
		}
	}
	if _, err := ByName("porter"); err == nil {
		t.Error("expected error for unknown analyzer")
	}
}
