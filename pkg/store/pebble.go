package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/pebble"

	"mikradb/pkg/logger"
	"mikradb/pkg/models"
)

// Key layout:
//   text:v<version>:<ref>          -> models.TextEntry JSON (durable cache tier)
//   position:<identity>:<type>     -> models.LocalPosition JSON (fallback copy)

var (
	db     *pebble.DB
	dbPath string
)

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func textKey(version int, ref string) []byte {
	return []byte("text:v" + strconv.Itoa(version) + ":" + ref)
}

func positionKey(identity, textType string) []byte {
	return []byte("position:" + identity + ":" + textType)
}

// SaveTextEntry writes a cached text entry under its versioned key.
func SaveTextEntry(e models.TextEntry) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal text entry: %w", err)
	}
	if err := db.Set(textKey(e.Version, e.Ref), b, pebble.Sync); err != nil {
		logger.Error("save_text_entry_failed", "ref", e.Ref, "error", err)
		return err
	}
	logger.Debug("text_entry_saved", "ref", e.Ref, "units", len(e.Units))
	return nil
}

// GetTextEntry returns the cached entry for ref under the given format
// version, or (nil, nil) when absent. Shape and freshness validation is the
// caller's concern.
func GetTextEntry(version int, ref string) (*models.TextEntry, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(textKey(version, ref))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()
	var e models.TextEntry
	if err := json.Unmarshal(v, &e); err != nil {
		// malformed payloads count as absent; the caller deletes them
		logger.Warn("text_entry_malformed", "ref", ref, "error", err)
		return nil, nil
	}
	return &e, nil
}

// DeleteTextEntry removes the entry for ref under the given format version.
func DeleteTextEntry(version int, ref string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete(textKey(version, ref), pebble.Sync)
}

// SweepStaleVersions deletes every cached text entry whose key was written
// under a format version other than current. Used by quota recovery and the
// housekeeping cron. Returns the number of deleted entries.
func SweepStaleVersions(current int) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	keep := "text:v" + strconv.Itoa(current) + ":"
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	prefix := []byte("text:")
	var stale [][]byte
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		k := append([]byte(nil), iter.Key()...)
		if !strings.HasPrefix(string(k), keep) {
			stale = append(stale, k)
		}
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	for _, k := range stale {
		if err := db.Delete(k, pebble.Sync); err != nil {
			return len(stale), err
		}
	}
	if len(stale) > 0 {
		logger.Info("stale_version_sweep", "deleted", len(stale), "current", current)
	}
	return len(stale), nil
}

// SweepExpired deletes every cached text entry older than the expiry window,
// judged against nowNanos. Returns the number of deleted entries.
func SweepExpired(nowNanos int64) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	prefix := []byte("text:")
	var expired [][]byte
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var e models.TextEntry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			expired = append(expired, append([]byte(nil), iter.Key()...))
			continue
		}
		if nowNanos-e.FetchedAt.UnixNano() > int64(models.TextExpiry) {
			expired = append(expired, append([]byte(nil), iter.Key()...))
		}
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	for _, k := range expired {
		if err := db.Delete(k, pebble.Sync); err != nil {
			return len(expired), err
		}
	}
	if len(expired) > 0 {
		logger.Info("expired_sweep", "deleted", len(expired))
	}
	return len(expired), nil
}

// SaveLocalPosition writes the device-local fallback position copy.
func SaveLocalPosition(identity, textType string, p models.LocalPosition) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	return db.Set(positionKey(identity, textType), b, pebble.Sync)
}

// GetLocalPosition returns the fallback position copy, or (nil, nil) when
// absent.
func GetLocalPosition(identity, textType string) (*models.LocalPosition, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(positionKey(identity, textType))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()
	var p models.LocalPosition
	if err := json.Unmarshal(v, &p); err != nil {
		return nil, nil
	}
	return &p, nil
}

// ListKeys returns all keys under the given prefix; an empty prefix lists
// everything. Used by the inspect tool and tests.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	pfx := []byte(prefix)
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if len(pfx) > 0 && !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(append([]byte(nil), iter.Key()...)))
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}
