package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/richinex/vaultbridge/model"
	"github.com/richinex/vaultbridge/storage"
	"github.com/richinex/vaultbridge/vault"
)

// Wire types follow the Bitwarden item layout.

type item struct {
	Object string      `json:"object"`
	ID     string      `json:"id"`
	Type   int         `json:"type"`
	Name   string      `json:"name"`
	Notes  *string     `json:"notes"`
	Login  *itemLogin  `json:"login"`
	Fields []itemField `json:"fields"`
}

type itemLogin struct {
	Username *string   `json:"username"`
	Password *string   `json:"password"`
	TOTP     *string   `json:"totp"`
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

const loginItemType = 1

// toItem splits the entry's well-known fields into the login section.
// The first field of each well-known name wins; later duplicates stay custom.
func toItem(e *storage.Entry) item {
	it := item{
		Object: "item",
		ID:     e.ID,
		Type:   loginItemType,
		Name:   e.Name,
		Login:  &itemLogin{URIs: []itemURI{}},
		Fields: []itemField{},
	}
	var haveUser, havePass, haveNotes bool
	for _, f := range e.Fields {
		switch {
		case !haveUser && strings.EqualFold(f.Name, "Username"):
			it.Login.Username, haveUser = f.Value, true
		case !havePass && strings.EqualFold(f.Name, "Password"):
			it.Login.Password, havePass = f.Value, true
		case !haveNotes && strings.EqualFold(f.Name, "Notes"):
			it.Notes, haveNotes = f.Value, true
		default:
			it.Fields = append(it.Fields, itemField{Name: f.Name, Value: f.Value})
		}
	}
	for _, u := range e.URIs {
		it.Login.URIs = append(it.Login.URIs, itemURI{URI: u})
	}
	return it
}

func fromItem(id string, it item) storage.Entry {
	e := storage.Entry{ID: id, Name: it.Name}
	if it.Login != nil {
		if it.Login.Username != nil {
			e.Fields = append(e.Fields, model.RecordField{Name: "Username", Value: it.Login.Username})
		}
		if it.Login.Password != nil {
			e.Fields = append(e.Fields, model.RecordField{Name: "Password", Value: it.Login.Password})
		}
		for _, u := range it.Login.URIs {
			e.URIs = append(e.URIs, u.URI)
		}
	}
	if it.Notes != nil {
		e.Fields = append(e.Fields, model.RecordField{Name: "Notes", Value: it.Notes})
	}
	for _, f := range it.Fields {
		e.Fields = append(e.Fields, model.RecordField{Name: f.Name, Value: f.Value})
	}
	return e
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"object": "template",
		"template": vault.Status{
			State: "unlocked",
		},
	})
}

func (s *Server) acknowledge(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{
			"object": "message",
			"title":  title,
		})
	}
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListEntries(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}

	search := strings.ToLower(r.URL.Query().Get("search"))
	items := []item{}
	for _, summary := range entries {
		if search != "" && !strings.Contains(strings.ToLower(summary.Name), search) {
			continue
		}
		e, err := s.store.GetEntry(r.Context(), summary.ID)
		if err != nil {
			s.internalError(w, err)
			return
		}
		if e != nil {
			items = append(items, toItem(e))
		}
	}
	writeData(w, http.StatusOK, map[string]any{"object": "list", "data": items})
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	e, ok := s.loadEntry(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, toItem(e))
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var it item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		writeError(w, http.StatusBadRequest, "invalid item: "+err.Error())
		return
	}
	id := uuid.NewString()
	if err := s.store.PutEntry(r.Context(), fromItem(id, it)); err != nil {
		s.internalError(w, err)
		return
	}
	s.respondEntry(w, r, id)
}

func (s *Server) putItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.loadEntry(w, r); !ok {
		return
	}
	id, _ := vault.ParseUUID(chi.URLParam(r, "id"))

	var it item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		writeError(w, http.StatusBadRequest, "invalid item: "+err.Error())
		return
	}
	if err := s.store.PutEntry(r.Context(), fromItem(id, it)); err != nil {
		s.internalError(w, err)
		return
	}
	s.respondEntry(w, r, id)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	e, ok := s.loadEntry(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteEntry(r.Context(), e.ID); err != nil {
		s.internalError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

// getTOTP always misses: the local vault stores no TOTP seeds.
func (s *Server) getTOTP(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found.")
}

func (s *Server) loadEntry(w http.ResponseWriter, r *http.Request) (*storage.Entry, bool) {
	id := chi.URLParam(r, "id")
	e, err := s.store.GetEntry(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return nil, false
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "Not found.")
		return nil, false
	}
	return e, true
}

func (s *Server) respondEntry(w http.ResponseWriter, r *http.Request, id string) {
	e, err := s.store.GetEntry(r.Context(), id)
	if err != nil || e == nil {
		s.internalError(w, err)
		return
	}
	writeData(w, http.StatusOK, toItem(e))
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
