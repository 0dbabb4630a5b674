package bitwarden

import (
	"strconv"

	"github.com/richinex/vaultbridge/model"
)

// item is the subset of a Bitwarden item used to build a record.
type item struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Notes  *string     `json:"notes"`
	Login  *itemLogin  `json:"login"`
	Fields []itemField `json:"fields"`
}

type itemLogin struct {
	Username *string   `json:"username"`
	Password *string   `json:"password"`
	TOTP     string    `json:"totp"`
	URIs     []itemURI `json:"uris"`
}

type itemURI struct {
	Match *int   `json:"match"`
	URI   string `json:"uri"`
}

type itemField struct {
	Name  string  `json:"name"`
	Value *string `json:"value"`
	Type  int     `json:"type"`
}

// record maps the item to a vault record. Fixed fields come first so that
// they win over custom fields of the same name.
func (it *item) record() *model.Record {
	rec := &model.Record{ID: it.ID, Name: it.Name}
	if it.Login != nil {
		rec.Fields = append(rec.Fields,
			model.RecordField{Name: "Username", Value: it.Login.Username},
			model.RecordField{Name: "Password", Value: it.Login.Password},
		)
		for i, u := range it.Login.URIs {
			name := "URI"
			if i > 0 {
				name = "URI" + strconv.Itoa(i+1)
			}
			rec.Fields = append(rec.Fields, model.NewField(name, u.URI))
		}
	}
	rec.Fields = append(rec.Fields, model.RecordField{Name: "Notes", Value: it.Notes})
	for _, f := range it.Fields {
		if f.Name == "" {
			continue
		}
		rec.Fields = append(rec.Fields, model.RecordField{Name: f.Name, Value: f.Value})
	}
	return rec.Clone()
}
