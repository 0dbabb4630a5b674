package placeholder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richinex/vaultbridge/model"
	"github.com/rs/zerolog"
)

// ErrCircularPlaceholder is returned when a field value refers back to itself
// through a chain of placeholders.
var ErrCircularPlaceholder = errors.New("circular placeholder")

// RecordKey is the object key that rebinds an object's default record.
const RecordKey = "@"

// Fetcher resolves record ids. *vault.FetchCache implements it.
type Fetcher interface {
	ParseID(s string) (string, bool)
	Get(ctx context.Context, id string) *model.Record
}

// Options controls a document expansion.
type Options struct {
	// PopulateRoot binds the root object to the default record, adding one
	// member per record field not already present. A circular field added
	// this way keeps its placeholder text instead of failing the expansion.
	PopulateRoot bool
}

// Engine expands placeholders against records from a Fetcher.
type Engine struct {
	fetch  Fetcher
	logger zerolog.Logger
}

// NewEngine creates an engine. The fetcher should be scoped to one dispatch.
func NewEngine(fetch Fetcher, logger zerolog.Logger) *Engine {
	return &Engine{fetch: fetch, logger: logger}
}

// fieldRef identifies a field being expanded, for cycle detection.
type fieldRef struct {
	recordID string
	field    string
}

// Expand returns a copy of doc with every string leaf expanded.
// defaultID is the record used by placeholders without a reference.
// Misses are left as literal text; only template cycles produce an error.
func (e *Engine) Expand(ctx context.Context, doc *Node, defaultID string, opts Options) (*Node, error) {
	if doc == nil {
		return Object(), nil
	}
	return e.expandNode(ctx, doc, defaultID, true, opts)
}

// ExpandString runs the placeholder replacement over a single string.
func (e *Engine) ExpandString(ctx context.Context, s, defaultID string) (string, error) {
	return e.replace(ctx, s, defaultID, nil)
}

func (e *Engine) expandNode(ctx context.Context, n *Node, rootID string, isRoot bool, opts Options) (*Node, error) {
	switch n.Kind {
	case KindObject:
		return e.expandObject(ctx, n, rootID, isRoot, opts)
	case KindArray:
		out := Array()
		out.Items = make([]*Node, 0, len(n.Items))
		for _, item := range n.Items {
			expanded, err := e.expandNode(ctx, item, rootID, false, opts)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, expanded)
		}
		return out, nil
	case KindString:
		s, err := e.replace(ctx, n.Str, rootID, nil)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	default:
		return n.Clone(), nil
	}
}

func (e *Engine) expandObject(ctx context.Context, n *Node, rootID string, isRoot bool, opts Options) (*Node, error) {
	out := Object()
	out.Members = make([]Member, 0, len(n.Members))

	localID := ""
	bound := false
	for _, m := range n.Members {
		if m.Key == RecordKey && m.Value.Kind == KindString {
			if !bound {
				bound = true
				id, ok, err := e.resolveRef(ctx, m.Value.Str, rootID, nil)
				if err != nil {
					return nil, err
				}
				if ok {
					localID = id
				} else {
					e.logger.Debug().Str("ref", m.Value.Str).Msg("record binding did not resolve to a record id")
				}
			}
			continue
		}
		out.Members = append(out.Members, Member{Key: m.Key, Value: m.Value})
	}

	populated := false
	if !bound && isRoot && opts.PopulateRoot {
		if id, ok := e.fetch.ParseID(rootID); ok {
			localID = id
			populated = true
		}
	}

	explicit := len(out.Members)

	if localID != "" {
		if rec := e.fetch.Get(ctx, localID); rec != nil {
			for _, f := range rec.Fields {
				if !validFieldName(f.Name) || out.HasKeyFold(f.Name) {
					continue
				}
				ph := expr{Name: f.Name, Ref: localID, HasRef: true}
				out.Members = append(out.Members, Member{Key: f.Name, Value: String(ph.String())})
			}
		}
	}

	stringID := rootID
	if localID != "" {
		stringID = localID
	}
	for i, m := range out.Members {
		var (
			expanded *Node
			err      error
		)
		if m.Value.Kind == KindString {
			var s string
			s, err = e.replace(ctx, m.Value.Str, stringID, nil)
			expanded = String(s)
		} else {
			expanded, err = e.expandNode(ctx, m.Value, rootID, false, opts)
		}
		if err != nil {
			if populated && i >= explicit && errors.Is(err, ErrCircularPlaceholder) {
				e.logger.Debug().Err(err).Str("field", m.Key).Msg("circular field left unexpanded")
				continue
			}
			return nil, err
		}
		out.Members[i].Value = expanded
	}
	return out, nil
}

// replace substitutes every placeholder in s. chain holds the fields whose
// values are currently being expanded.
func (e *Engine) replace(ctx context.Context, s, defaultID string, chain []fieldRef) (string, error) {
	if !strings.Contains(s, "{") {
		return s, nil
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		open := strings.IndexByte(s[i:], '{')
		if open < 0 {
			b.WriteString(s[i:])
			break
		}
		open += i
		b.WriteString(s[i:open])

		ph, end, ok := scanExpr(s, open)
		if !ok {
			b.WriteByte('{')
			i = open + 1
			continue
		}

		value, resolved, err := e.resolve(ctx, ph, defaultID, chain)
		if err != nil {
			return "", err
		}
		if resolved {
			b.WriteString(value)
		} else {
			b.WriteString(s[open:end])
		}
		i = end
	}
	return b.String(), nil
}

func (e *Engine) resolve(ctx context.Context, ph expr, defaultID string, chain []fieldRef) (string, bool, error) {
	target := defaultID
	if ph.HasRef {
		id, ok, err := e.resolveRef(ctx, ph.Ref, defaultID, chain)
		if err != nil || !ok {
			return "", false, err
		}
		target = id
	}

	id, ok := e.fetch.ParseID(target)
	if !ok {
		return "", false, nil
	}
	rec := e.fetch.Get(ctx, id)
	if rec == nil {
		return "", false, nil
	}

	if f, found := rec.Field(ph.Name); found {
		key := fieldRef{recordID: id, field: strings.ToLower(f.Name)}
		for _, seen := range chain {
			if seen == key {
				return "", false, cycleError(append(chain, key))
			}
		}
		next := make([]fieldRef, len(chain), len(chain)+1)
		copy(next, chain)
		value, err := e.replace(ctx, f.StringValue(), id, append(next, key))
		if err != nil {
			return "", false, err
		}
		return value, true, nil
	}
	if model.IsDisplayNameAlias(ph.Name) {
		return rec.Name, true, nil
	}
	return "", false, nil
}

// resolveRef turns a reference into a record id, expanding any placeholders
// inside it first.
func (e *Engine) resolveRef(ctx context.Context, ref, defaultID string, chain []fieldRef) (string, bool, error) {
	if id, ok := e.fetch.ParseID(ref); ok {
		return id, true, nil
	}
	expanded, err := e.replace(ctx, ref, defaultID, chain)
	if err != nil {
		return "", false, err
	}
	id, ok := e.fetch.ParseID(expanded)
	return id, ok, nil
}

func cycleError(chain []fieldRef) error {
	parts := make([]string, len(chain))
	for i, ref := range chain {
		parts[i] = "{" + ref.field + "@" + ref.recordID + "}"
	}
	return fmt.Errorf("%w: %s", ErrCircularPlaceholder, strings.Join(parts, " -> "))
}
