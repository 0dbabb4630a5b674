package placeholder

import (
	"errors"
	"testing"
)

func TestParseKeepsKeyOrder(t *testing.T) {
	doc, err := Parse(`{"z":1,"a":{"y":[1,"two",false],"b":null},"m":"<&>"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"z":1,"a":{"y":[1,"two",false],"b":null},"m":"<&>"}`
	if got := doc.String(); got != want {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestParseEmptyTemplate(t *testing.T) {
	for _, tmpl := range []string{"", "   ", "\n\t"} {
		doc, err := Parse(tmpl)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tmpl, err)
		}
		if doc.Kind != KindObject || len(doc.Members) != 0 {
			t.Errorf("Parse(%q) = %s, want empty object", tmpl, doc)
		}
	}
}

func TestParseScalarDocuments(t *testing.T) {
	tests := map[string]Kind{
		`"text"`: KindString,
		`42.5`:   KindScalar,
		`[]`:     KindArray,
		`true`:   KindScalar,
	}
	for tmpl, kind := range tests {
		doc, err := Parse(tmpl)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tmpl, err)
		}
		if doc.Kind != kind {
			t.Errorf("Parse(%q) kind = %v, want %v", tmpl, doc.Kind, kind)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	for _, tmpl := range []string{`{"a":}`, `{"a":1`, `{"a":1} trailing`, `[1,,2]`, `{a:1}`} {
		_, err := Parse(tmpl)
		if !errors.Is(err, ErrTemplate) {
			t.Errorf("Parse(%q) error = %v, want ErrTemplate", tmpl, err)
		}
	}
}

func TestNodeHelpers(t *testing.T) {
	doc := Object(M("User", String("a")), M("user", String("b")))
	if v, ok := doc.Get("user"); !ok || v.Str != "b" {
		t.Errorf("Get should match exactly, got %v %v", v, ok)
	}
	if !doc.HasKeyFold("USER") {
		t.Error("HasKeyFold should ignore case")
	}
	c := doc.Clone()
	c.Members[0].Value.Str = "changed"
	if doc.Members[0].Value.Str != "a" {
		t.Error("Clone must be deep")
	}
}
