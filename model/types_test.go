package model

import "testing"

func TestRecordFieldCaseInsensitiveFirstMatch(t *testing.T) {
	r := &Record{
		ID:   "abc",
		Name: "Server1",
		Fields: []RecordField{
			NewField("Username", "admin"),
			NewField("USERNAME", "shadowed"),
		},
	}

	f, ok := r.Field("username")
	if !ok {
		t.Fatal("expected field to be found")
	}
	if f.StringValue() != "admin" {
		t.Errorf("expected first match 'admin', got %q", f.StringValue())
	}
}

func TestRecordDisplayValue(t *testing.T) {
	r := &Record{ID: "abc", Name: "Server1", Fields: []RecordField{NewField("Title", "from-field")}}

	tests := []struct {
		name   string
		lookup string
		want   string
		found  bool
	}{
		{name: "field wins over alias", lookup: "title", want: "from-field", found: true},
		{name: "name alias", lookup: "NAME", want: "Server1", found: true},
		{name: "miss", lookup: "Password", want: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.DisplayValue(tt.lookup)
			if ok != tt.found || got != tt.want {
				t.Errorf("DisplayValue(%q) = %q, %v; want %q, %v", tt.lookup, got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestNilValueField(t *testing.T) {
	r := &Record{Fields: []RecordField{{Name: "Empty"}}}
	got, ok := r.DisplayValue("Empty")
	if !ok || got != "" {
		t.Errorf("expected empty found value, got %q, %v", got, ok)
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := &Record{ID: "abc", Fields: []RecordField{NewField("A", "1")}}
	c := r.Clone()
	*c.Fields[0].Value = "2"
	if r.Fields[0].StringValue() != "1" {
		t.Error("clone shares field values with original")
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		value   string
		command string
		tmpl    string
		ok      bool
	}{
		{value: `rdp:{"host":"{URI}"}`, command: "rdp", tmpl: `{"host":"{URI}"}`, ok: true},
		{value: `print:`, command: "print", tmpl: "", ok: true},
		{value: `https://example.com`, ok: false},
		{value: `vaultbridge://6b1f0c2d-3e4a-4b5c-8d6e-7f8091a2b3c4`, ok: false},
		{value: `print:/tmp/x`, command: "print", tmpl: "/tmp/x", ok: true},
		{value: `:{}`, ok: false},
		{value: `plain text`, ok: false},
		{value: `my cmd:{}`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			a, ok := ParseAction(tt.value)
			if ok != tt.ok {
				t.Fatalf("ParseAction(%q) ok = %v, want %v", tt.value, ok, tt.ok)
			}
			if !ok {
				return
			}
			if a.Command != tt.command || a.Template != tt.tmpl {
				t.Errorf("got %q/%q, want %q/%q", a.Command, a.Template, tt.command, tt.tmpl)
			}
			if a.String() != tt.value {
				t.Errorf("String() = %q, want %q", a.String(), tt.value)
			}
		})
	}
}
