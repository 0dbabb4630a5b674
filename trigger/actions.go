package trigger

import (
	"github.com/richinex/vaultbridge/commands"
	"github.com/richinex/vaultbridge/model"
)

// Action is one button offered for a record.
type Action struct {
	Field string
	// Index is the position of Field in the record's fields.
	Index   int
	Action  model.Action
	Command commands.Command
}

// Actions lists the fields of rec whose value names a registered command
// that can execute on this machine, in field order. Unknown commands are
// not offered.
func Actions(rec *model.Record, registry *commands.Registry) []Action {
	if rec == nil {
		return nil
	}
	var out []Action
	for i, f := range rec.Fields {
		if f.Value == nil {
			continue
		}
		action, ok := model.ParseAction(*f.Value)
		if !ok {
			continue
		}
		cmd, ok := registry.Get(action.Command)
		if !ok || !cmd.CanExecute() {
			continue
		}
		out = append(out, Action{Field: f.Name, Index: i, Action: action, Command: cmd})
	}
	return out
}
