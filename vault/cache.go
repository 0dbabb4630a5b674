package vault

import (
	"context"

	"github.com/richinex/vaultbridge/model"
	"github.com/rs/zerolog"
)

// FetchCache memoizes record lookups for the duration of one dispatch.
// Misses and failed fetches are cached as nil so a record is requested from
// the vault at most once. A FetchCache is owned by a single dispatch and is
// not safe for concurrent use.
type FetchCache struct {
	vault       Vault
	includeTOTP bool
	logger      zerolog.Logger
	records     map[string]*model.Record
	fetches     int
}

// NewFetchCache creates an empty cache over v.
func NewFetchCache(v Vault, includeTOTP bool, logger zerolog.Logger) *FetchCache {
	return &FetchCache{
		vault:       v,
		includeTOTP: includeTOTP,
		logger:      logger,
		records:     make(map[string]*model.Record),
	}
}

// ParseID delegates to the underlying vault.
func (c *FetchCache) ParseID(s string) (string, bool) {
	return c.vault.ParseID(s)
}

// Seed stores an already fetched record.
func (c *FetchCache) Seed(rec *model.Record) {
	if rec == nil {
		return
	}
	if id, ok := c.vault.ParseID(rec.ID); ok {
		c.records[id] = rec
	}
}

// Get returns the record for id, or nil if it is missing or the fetch failed.
func (c *FetchCache) Get(ctx context.Context, id string) *model.Record {
	key, ok := c.vault.ParseID(id)
	if !ok {
		return nil
	}
	if rec, hit := c.records[key]; hit {
		return rec
	}

	c.fetches++
	rec, err := c.vault.GetItem(ctx, key, c.includeTOTP)
	if err != nil {
		c.logger.Debug().Err(err).Str("vault", c.vault.Name()).Str("record", key).Msg("record fetch failed")
		rec = nil
	}
	c.records[key] = rec
	return rec
}

// Fetches returns how many times the vault was queried.
func (c *FetchCache) Fetches() int {
	return c.fetches
}
