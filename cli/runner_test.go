package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/richinex/vaultbridge/commands"
	"github.com/richinex/vaultbridge/model"
	"github.com/richinex/vaultbridge/trigger"
)

func TestRecordURIs(t *testing.T) {
	rec := &model.Record{Fields: []model.RecordField{
		model.NewField("Username", "admin"),
		model.NewField("URI", "https://a"),
		model.NewField("URI2", "https://b"),
		model.NewField("URI4", "https://skipped"),
	}}

	want := []string{"https://a", "https://b"}
	if diff := cmp.Diff(want, recordURIs(rec)); diff != "" {
		t.Errorf("uris mismatch (-want +got):\n%s", diff)
	}
	if got := recordURIs(&model.Record{}); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestPrintActions(t *testing.T) {
	registry, err := commands.WithDefaults(commands.Config{StateDir: t.TempDir()})
	if err != nil {
		t.Fatalf("WithDefaults failed: %v", err)
	}
	rec := &model.Record{
		ID:   "id-1",
		Name: "Server1",
		Fields: []model.RecordField{
			model.NewField("Hello", `print:{"text":"hi"}`),
		},
	}

	var buf bytes.Buffer
	printActions(&buf, rec, trigger.Actions(rec, registry))
	if !strings.Contains(buf.String(), "1. Hello [print]") {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	printActions(&buf, &model.Record{ID: "id-2"}, nil)
	if !strings.Contains(buf.String(), "no actions") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestOpenWiresLocalVault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VAULTBRIDGE_STATE_DIR", dir)
	t.Setenv("BW_ENABLED", "false")

	app, err := Open(Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer app.Close()

	if diff := cmp.Diff([]string{LocalScheme}, app.Vaults.Schemes()); diff != "" {
		t.Errorf("schemes mismatch (-want +got):\n%s", diff)
	}
	if _, ok := app.Commands.Get("rdp"); !ok {
		t.Error("expected built-in commands registered")
	}
}

func TestSelectAction(t *testing.T) {
	registry, err := commands.WithDefaults(commands.Config{StateDir: t.TempDir()})
	if err != nil {
		t.Fatalf("WithDefaults failed: %v", err)
	}
	rec := &model.Record{
		ID: "id-1",
		Fields: []model.RecordField{
			model.NewField("Connect", `print:{"text":"one"}`),
			model.NewField("Username", "admin"),
			model.NewField("Connect", `print:{"text":"two"}`),
			model.NewField("Hello", `print:{"text":"hi"}`),
		},
	}
	actions := trigger.Actions(rec, registry)

	tests := []struct {
		choice   string
		index    int
		template string
		wantErr  bool
	}{
		{choice: "1", index: 0, template: `{"text":"one"}`},
		{choice: "2", index: 2, template: `{"text":"two"}`},
		{choice: "hello", index: 3, template: `{"text":"hi"}`},
		{choice: "Connect", wantErr: true},
		{choice: "4", wantErr: true},
		{choice: "Missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.choice, func(t *testing.T) {
			a, err := selectAction(actions, tt.choice)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got field %d", a.Index)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Index != tt.index || a.Action.Template != tt.template {
				t.Errorf("got index %d template %q, want %d %q", a.Index, a.Action.Template, tt.index, tt.template)
			}
		})
	}
}
