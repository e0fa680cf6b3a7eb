package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound indicates an absent ledger entry.
var ErrNotFound = errors.New("not found")

// Entry records one check created at the monitoring service.
type Entry struct {
	RunID     string    `json:"run_id"`
	Site      string    `json:"site"`
	CheckName string    `json:"check_name"`
	Name      string    `json:"name"`
	CheckID   int64     `json:"check_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the storage key "<runID>.<checkID>".
func (e Entry) Key() string {
	return e.RunID + "." + strconv.FormatInt(e.CheckID, 10)
}

// Store persists created-check records across runs.
// Params: put/delete/list operations keyed by run and remote check id.
// Returns: ledger backend behavior.
type Store interface {
	Put(ctx context.Context, entry Entry) error
	DeleteCheck(ctx context.Context, checkID int64) (int, error)
	List(ctx context.Context, runID string) ([]Entry, error)
	Close() error
}

// keyHasCheckID reports whether key ends with the given check id segment.
func keyHasCheckID(key string, checkID int64) bool {
	return strings.HasSuffix(key, "."+strconv.FormatInt(checkID, 10))
}

// keyInRun reports whether key belongs to runID; empty runID matches every key.
func keyInRun(key, runID string) bool {
	return runID == "" || strings.HasPrefix(key, runID+".")
}

// sortEntries orders entries by run, then site, check, and path name.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.RunID != b.RunID {
			return a.RunID < b.RunID
		}
		if a.Site != b.Site {
			return a.Site < b.Site
		}
		if a.CheckName != b.CheckName {
			return a.CheckName < b.CheckName
		}
		return a.Name < b.Name
	})
}

func validateEntry(entry Entry) error {
	if strings.TrimSpace(entry.RunID) == "" {
		return errors.New("ledger entry run_id is required")
	}
	if strings.ContainsAny(entry.RunID, ". *>") {
		return fmt.Errorf("ledger entry run_id %q contains reserved characters", entry.RunID)
	}
	if entry.CheckID <= 0 {
		return fmt.Errorf("ledger entry check_id must be >0, got %d", entry.CheckID)
	}
	return nil
}
