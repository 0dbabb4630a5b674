package placeholder

// expr is one {Name} or {Name@Ref} occurrence.
type expr struct {
	Name   string
	Ref    string
	HasRef bool
}

// String returns the placeholder text.
func (e expr) String() string {
	if e.HasRef {
		return "{" + e.Name + "@" + e.Ref + "}"
	}
	return "{" + e.Name + "}"
}

// scanExpr parses a placeholder starting at the '{' at s[open].
// Names stop at '{', '}' or '@'; a reference runs to the brace that closes
// the placeholder, so references may nest further placeholders.
// Returns the index just past the closing brace.
func scanExpr(s string, open int) (expr, int, bool) {
	j := open + 1
	for j < len(s) && s[j] != '{' && s[j] != '}' && s[j] != '@' {
		j++
	}
	if j >= len(s) || s[j] == '{' || j == open+1 {
		return expr{}, 0, false
	}

	name := s[open+1 : j]
	if s[j] == '}' {
		return expr{Name: name}, j + 1, true
	}

	depth := 0
	for k := j + 1; k < len(s); k++ {
		switch s[k] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
				continue
			}
			if k == j+1 {
				return expr{}, 0, false
			}
			return expr{Name: name, Ref: s[j+1 : k], HasRef: true}, k + 1, true
		}
	}
	return expr{}, 0, false
}

// validFieldName reports whether name can appear inside a placeholder.
func validFieldName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '{', '}', '@':
			return false
		}
	}
	return true
}
