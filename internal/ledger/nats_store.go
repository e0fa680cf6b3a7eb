package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkloader/internal/config"

	"github.com/nats-io/nats.go"
)

// NATSStore persists the ledger in a JetStream KV bucket.
type NATSStore struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewNATSStore connects to NATS and opens or creates the ledger bucket.
// Params: ledger settings from config.
// Returns: initialized store or setup error.
func NewNATSStore(settings config.LedgerConfig) (*NATSStore, error) {
	timeout := time.Duration(settings.TimeoutSec) * time.Second
	nc, err := nats.Connect(strings.Join(settings.URL, ","), nats.Name("checkloader-ledger"), nats.Timeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream(nats.MaxWait(timeout))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(settings.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      settings.Bucket,
			Description: "checks created by checkloader",
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open ledger bucket %q: %w", settings.Bucket, err)
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

// Put writes one entry unconditionally.
func (s *NATSStore) Put(_ context.Context, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	if _, err := s.kv.Put(entry.Key(), body); err != nil {
		return fmt.Errorf("put ledger entry: %w", err)
	}
	return nil
}

// DeleteCheck deletes every key carrying check id.
// Returns: number of deleted keys.
func (s *NATSStore) DeleteCheck(_ context.Context, checkID int64) (int, error) {
	keys, err := s.keys()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range keys {
		if !keyHasCheckID(key, checkID) {
			continue
		}
		if err := s.kv.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
			return removed, fmt.Errorf("delete ledger entry %q: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

// List reads entries of runID, or all entries when runID is empty.
func (s *NATSStore) List(_ context.Context, runID string) ([]Entry, error) {
	keys, err := s.keys()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(keys))
	for _, key := range keys {
		if !keyInRun(key, runID) {
			continue
		}
		kvEntry, err := s.kv.Get(key)
		if err != nil {
			if errors.Is(err, nats.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("get ledger entry %q: %w", key, err)
		}
		var entry Entry
		if err := json.Unmarshal(kvEntry.Value(), &entry); err != nil {
			return nil, fmt.Errorf("decode ledger entry %q: %w", key, err)
		}
		out = append(out, entry)
	}
	sortEntries(out)
	return out, nil
}

func (s *NATSStore) keys() ([]string, error) {
	keys, err := s.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list ledger keys: %w", err)
	}
	return keys, nil
}

// Close closes underlying NATS connection.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}

// Open returns the NATS store when the ledger is enabled, otherwise an in-memory store.
// Params: ledger settings.
// Returns: store implementation or connection error.
func Open(settings config.LedgerConfig) (Store, error) {
	if !settings.Enabled {
		return NewMemoryStore(), nil
	}
	return NewNATSStore(settings)
}
