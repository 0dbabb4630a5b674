package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/richinex/vaultbridge/vault"
	"gopkg.in/yaml.v3"
)

// importFile is the YAML layout accepted by ImportYAML:
//
//	records:
//	  - id: 6f1c...        # optional, generated when empty
//	    name: Server1
//	    uris: [rdp://6f1c...]
//	    fields:
//	      - name: Username
//	        value: admin
type importFile struct {
	Records []Entry `yaml:"records"`
}

// ImportYAML stores every record of a YAML document and returns their ids
// in document order. Nothing is stored if any record is invalid.
func (s *SqliteStorage) ImportYAML(ctx context.Context, r io.Reader) ([]string, error) {
	var file importFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}

	for i := range file.Records {
		rec := &file.Records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
			continue
		}
		id, ok := vault.ParseUUID(rec.ID)
		if !ok {
			return nil, fmt.Errorf("record %d (%s): invalid id %q", i, rec.Name, rec.ID)
		}
		rec.ID = id
	}

	ids := make([]string, 0, len(file.Records))
	for _, rec := range file.Records {
		if err := s.PutEntry(ctx, rec); err != nil {
			return ids, fmt.Errorf("failed to import %s: %w", rec.ID, err)
		}
		ids = append(ids, rec.ID)
	}
	return ids, nil
}
