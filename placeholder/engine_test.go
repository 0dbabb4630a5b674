package placeholder

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/richinex/vaultbridge/model"
	"github.com/rs/zerolog"
)

var testID = regexp.MustCompile(`^[a-z0-9-]+$`)

// memFetcher is an in-memory Fetcher whose ids are lowercase tokens.
type memFetcher struct {
	records map[string]*model.Record
	gets    map[string]int
}

func newMemFetcher(records ...*model.Record) *memFetcher {
	f := &memFetcher{records: map[string]*model.Record{}, gets: map[string]int{}}
	for _, r := range records {
		f.records[r.ID] = r
	}
	return f
}

func (f *memFetcher) ParseID(s string) (string, bool) {
	if !testID.MatchString(s) {
		return "", false
	}
	return s, true
}

func (f *memFetcher) Get(_ context.Context, id string) *model.Record {
	f.gets[id]++
	return f.records[id]
}

func record(id, name string, kv ...string) *model.Record {
	r := &model.Record{ID: id, Name: name}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Fields = append(r.Fields, model.NewField(kv[i], kv[i+1]))
	}
	return r
}

var (
	r1 = record("abc", "Server1", "Username", "admin", "Password", "secret")
	r2 = record("xyz", "", "Gateway", "{Username@abc}")
)

func expand(t *testing.T, f Fetcher, template, defaultID string, opts Options) string {
	t.Helper()
	doc, err := Parse(template)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", template, err)
	}
	out, err := NewEngine(f, zerolog.Nop()).Expand(context.Background(), doc, defaultID, opts)
	if err != nil {
		t.Fatalf("Expand(%q) failed: %v", template, err)
	}
	return out.String()
}

func TestExpandScenarios(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		defaultID string
		want      string
	}{
		{
			name:      "default record fields",
			template:  `{"user":"{Username}","pass":"{Password}"}`,
			defaultID: "abc",
			want:      `{"user":"admin","pass":"secret"}`,
		},
		{
			name:     "nested cross-record resolution through a field value",
			template: `{"gw":"{Gateway@xyz}"}`,
			want:     `{"gw":"admin"}`,
		},
		{
			name:      "unknown field passes through",
			template:  `{"x":"{Unknown@abc}"}`,
			defaultID: "abc",
			want:      `{"x":"{Unknown@abc}"}`,
		},
		{
			name:      "explicit reference ignores default",
			template:  `{"x":"{Username@abc}"}`,
			defaultID: "xyz",
			want:      `{"x":"admin"}`,
		},
		{
			name:      "name and title aliases",
			template:  `{"n":"{Name}","t":"{title}"}`,
			defaultID: "abc",
			want:      `{"n":"Server1","t":"Server1"}`,
		},
		{
			name:      "case-insensitive field match",
			template:  `{"u":"{USERNAME}"}`,
			defaultID: "abc",
			want:      `{"u":"admin"}`,
		},
		{
			name:     "unknown record passes through",
			template: `{"u":"{Username@nope}"}`,
			want:     `{"u":"{Username@nope}"}`,
		},
		{
			name:     "no default leaves bare placeholders",
			template: `{"u":"{Username}"}`,
			want:     `{"u":"{Username}"}`,
		},
		{
			name:      "arrays and embedded text",
			template:  `["{Username}@host", "pw={Password};", 3389, true, null]`,
			defaultID: "abc",
			want:      `["admin@host","pw=secret;",3389,true,null]`,
		},
		{
			name:      "unbalanced braces stay literal",
			template:  `{"a":"{{Username}} {Password","b":"{}","c":"{@abc}"}`,
			defaultID: "abc",
			want:      `{"a":"{admin} {Password","b":"{}","c":"{@abc}"}`,
		},
		{
			name:      "template comments are accepted",
			template:  "{\n  // login\n  \"u\": \"{Username}\",\n}",
			defaultID: "abc",
			want:      `{"u":"admin"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expand(t, newMemFetcher(r1, r2), tt.template, tt.defaultID, Options{})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("expansion mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNestedReference(t *testing.T) {
	link := record("lnk", "Link", "Target", "abc", "Broken", "not an id")
	f := newMemFetcher(r1, link)

	got := expand(t, f, `{"a":"{Username@{Target@lnk}}","b":"{Username@{Broken@lnk}}","c":"{Username@{Missing@lnk}}"}`, "", Options{})
	want := `{"a":"admin","b":"{Username@{Broken@lnk}}","c":"{Username@{Missing@lnk}}"}`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDeeplyNestedReference(t *testing.T) {
	l1 := record("l1", "", "Next", "l2")
	l2 := record("l2", "", "Next", "abc")
	f := newMemFetcher(r1, l1, l2)

	got := expand(t, f, `"{Password@{Next@{Next@l1}}}"`, "", Options{})
	if got != `"secret"` {
		t.Errorf("expected \"secret\", got %s", got)
	}
}

func TestFieldValueUsesOwnRecordAsDefault(t *testing.T) {
	host := record("hst", "Host", "Address", "10.0.0.1", "Url", "rdp://{Address}")
	f := newMemFetcher(r1, host)

	got := expand(t, f, `{"u":"{Url@hst}"}`, "abc", Options{})
	if got != `{"u":"rdp://10.0.0.1"}` {
		t.Errorf("unexpected expansion: %s", got)
	}
}

func TestRecordBindingPopulatesFields(t *testing.T) {
	f := newMemFetcher(r1, r2)

	got := expand(t, f, `{"inner":{"@":"abc","username":"override {Password}"},"other":{"Username":"{Username}"}}`, "xyz", Options{})
	want := `{"inner":{"username":"override secret","Password":"secret"},"other":{"Username":"{Username}"}}`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordBindingThroughPlaceholder(t *testing.T) {
	link := record("lnk", "", "Server", "abc")
	f := newMemFetcher(r1, link)

	got := expand(t, f, `{"srv":{"@":"{Server}"}}`, "lnk", Options{})
	want := `{"srv":{"Username":"admin","Password":"secret"}}`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestPopulateRoot(t *testing.T) {
	f := newMemFetcher(r1)

	got := expand(t, f, `{"password":"x"}`, "abc", Options{PopulateRoot: true})
	want := `{"password":"x","Username":"admin"}`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// Without the option the root is left alone.
	if got := expand(t, f, `{}`, "abc", Options{}); got != `{}` {
		t.Errorf("expected untouched root, got %s", got)
	}
}

func TestPopulateRootKeepsCircularFieldsUnexpanded(t *testing.T) {
	host := record("hst", "Host", "Host", "10.0.0.1", "Notes", "{Notes}")
	f := newMemFetcher(host)

	got := expand(t, f, `{"host":"{Host}"}`, "hst", Options{PopulateRoot: true})
	want := `{"host":"10.0.0.1","Notes":"{Notes@hst}"}`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// A template that asks for the circular field still fails.
	doc, err := Parse(`{"n":"{Notes}"}`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewEngine(f, zerolog.Nop()).Expand(context.Background(), doc, "hst", Options{PopulateRoot: true})
	if !errors.Is(err, ErrCircularPlaceholder) {
		t.Fatalf("expected ErrCircularPlaceholder, got %v", err)
	}
}

func TestNestedObjectsDoNotInheritBinding(t *testing.T) {
	f := newMemFetcher(r1)

	got := expand(t, f, `{"@":"abc","child":{"k":"v"},"list":[{"k":"v"}]}`, "", Options{})
	want := `{"child":{"k":"v"},"list":[{"k":"v"}],"Username":"admin","Password":"secret"}`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNonStringRecordKeyIsKept(t *testing.T) {
	got := expand(t, newMemFetcher(r1), `{"@":5}`, "", Options{})
	if got != `{"@":5}` {
		t.Errorf("expected non-string @ to be kept, got %s", got)
	}
}

func TestExpandIsIdempotentOnExpandedDocuments(t *testing.T) {
	f := newMemFetcher(r1, r2)
	first := expand(t, f, `{"user":"{Username}","gw":"{Gateway@xyz}","n":[1,2]}`, "abc", Options{})
	second := expand(t, f, first, "abc", Options{})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second expansion changed document (-first +second):\n%s", diff)
	}
}

func TestExpandDoesNotMutateInput(t *testing.T) {
	doc, err := Parse(`{"@":"abc","u":"{Username}"}`)
	if err != nil {
		t.Fatal(err)
	}
	before := doc.String()
	if _, err := NewEngine(newMemFetcher(r1), zerolog.Nop()).Expand(context.Background(), doc, "", Options{}); err != nil {
		t.Fatal(err)
	}
	if doc.String() != before {
		t.Errorf("input mutated: %s -> %s", before, doc.String())
	}
}

func TestEngineLooksUpEachPlaceholder(t *testing.T) {
	f := newMemFetcher(r1)
	expand(t, f, `{"a":"{Username@abc}","b":"{Password@abc}"}`, "", Options{})
	if f.gets["abc"] != 2 {
		t.Fatalf("expected one fetcher lookup per placeholder, got %d", f.gets["abc"])
	}
}

func TestCircularPlaceholder(t *testing.T) {
	tests := []struct {
		name    string
		records []*model.Record
		tmpl    string
	}{
		{
			name:    "self reference",
			records: []*model.Record{record("loop", "", "Password", "{Password}")},
			tmpl:    `{"p":"{Password@loop}"}`,
		},
		{
			name: "cross record",
			records: []*model.Record{
				record("one", "", "A", "{B@two}"),
				record("two", "", "B", "x{A@one}"),
			},
			tmpl: `["{A@one}"]`,
		},
		{
			name:    "through record binding",
			records: []*model.Record{record("loop", "", "A", "{a}")},
			tmpl:    `{"@":"loop"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.tmpl)
			if err != nil {
				t.Fatal(err)
			}
			_, err = NewEngine(newMemFetcher(tt.records...), zerolog.Nop()).Expand(context.Background(), doc, "", Options{})
			if !errors.Is(err, ErrCircularPlaceholder) {
				t.Fatalf("expected ErrCircularPlaceholder, got %v", err)
			}
			if !strings.Contains(err.Error(), "->") {
				t.Errorf("expected chain in error, got %v", err)
			}
		})
	}
}

func TestRepeatedReferenceIsNotACycle(t *testing.T) {
	r := record("rep", "", "User", "admin", "Login", "{User}\\{User}")
	got := expand(t, newMemFetcher(r), `{"l":"{Login@rep}"}`, "", Options{})
	if got != `{"l":"admin\\admin"}` {
		t.Errorf("unexpected expansion: %s", got)
	}
}

func TestExpandString(t *testing.T) {
	e := NewEngine(newMemFetcher(r1), zerolog.Nop())
	got, err := e.ExpandString(context.Background(), "{Username}:{Password}", "abc")
	if err != nil {
		t.Fatal(err)
	}
	if got != "admin:secret" {
		t.Errorf("got %q", got)
	}
}
