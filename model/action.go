package model

import (
	"strings"
)

// Action is a field value of the form "<CommandName>:<JsonArgsTemplate>".
// Such fields are rendered as buttons that dispatch CommandName.
type Action struct {
	Command  string
	Template string
}

// ParseAction splits a field value into an action.
// The value is split at the first colon; the command part must be a
// non-empty identifier or the value is not an action. A template starting
// with "//" is a URL authority, so values like "https://host" are not
// actions.
func ParseAction(value string) (Action, bool) {
	idx := strings.IndexByte(value, ':')
	if idx <= 0 {
		return Action{}, false
	}
	name := value[:idx]
	for _, r := range name {
		if !isCommandRune(r) {
			return Action{}, false
		}
	}
	template := value[idx+1:]
	if strings.HasPrefix(template, "//") {
		return Action{}, false
	}
	return Action{Command: name, Template: template}, true
}

// String returns the encoded field value.
func (a Action) String() string {
	return a.Command + ":" + a.Template
}

func isCommandRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	}
	return false
}
