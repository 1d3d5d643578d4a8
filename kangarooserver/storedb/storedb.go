// Package storedb persists a kangarooserver's search configuration,
// work-range ledger, and solved state across restarts, as a thin
// wrapper over goleveldb — the teacher's own key/value store of choice
// for durable local state.
package storedb

import (
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

var (
	keyConfig = []byte("cfg")
	keySolved = []byte("solved")
	rangePrefix = []byte("range:")
)

// Store wraps a goleveldb handle under the kangarooserver key layout.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) a leveldb database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("storedb: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenMem opens an in-memory database, for tests and the "no -db flag"
// ephemeral-server case.
func OpenMem() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("storedb: open memstorage: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Config is the durable shape of a configured search.
type Config struct {
	StartRange string `json:"start_range"`
	EndRange   string `json:"end_range"`
	PubKey     string `json:"pubkey"`
	DPBits     int    `json:"dp_bits"`
	BitRange   int    `json:"bit_range"`
	RangeSize  string `json:"range_size"`
}

// SaveConfig persists the active search configuration.
func (s *Store) SaveConfig(cfg Config) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("storedb: marshal config: %w", err)
	}
	return s.db.Put(keyConfig, b, nil)
}

// LoadConfig returns the persisted configuration, if any.
func (s *Store) LoadConfig() (Config, bool, error) {
	b, err := s.db.Get(keyConfig, nil)
	if err == leveldb.ErrNotFound {
		return Config{}, false, nil
	}
	if err != nil {
		return Config{}, false, fmt.Errorf("storedb: load config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("storedb: unmarshal config: %w", err)
	}
	return cfg, true, nil
}

type solvedState struct {
	Solved   bool   `json:"solved"`
	Solution string `json:"solution"`
}

// SaveSolved persists the global solved flag and solution hex.
func (s *Store) SaveSolved(solved bool, solution string) error {
	b, err := json.Marshal(solvedState{Solved: solved, Solution: solution})
	if err != nil {
		return fmt.Errorf("storedb: marshal solved state: %w", err)
	}
	return s.db.Put(keySolved, b, nil)
}

// LoadSolved returns the persisted solved flag and solution hex.
func (s *Store) LoadSolved() (bool, string, error) {
	b, err := s.db.Get(keySolved, nil)
	if err == leveldb.ErrNotFound {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("storedb: load solved state: %w", err)
	}
	var st solvedState
	if err := json.Unmarshal(b, &st); err != nil {
		return false, "", fmt.Errorf("storedb: unmarshal solved state: %w", err)
	}
	return st.Solved, st.Solution, nil
}

// RangeRecord is the durable shape of one work range.
type RangeRecord struct {
	ID         string `json:"id"`
	StartHex   string `json:"start_hex"`
	EndHex     string `json:"end_hex"`
	BitRange   int    `json:"bit_range"`
	DPBits     int    `json:"dp_bits"`
	Status     string `json:"status"`
	AssignedTo string `json:"assigned_to"`
}

func rangeKey(id string) []byte {
	return append(append([]byte{}, rangePrefix...), []byte(id)...)
}

// SaveRange persists one work-range record, keyed by its ID.
func (s *Store) SaveRange(r RangeRecord) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("storedb: marshal range %s: %w", r.ID, err)
	}
	return s.db.Put(rangeKey(r.ID), b, nil)
}

// LoadRanges returns every persisted work-range record, in key order.
func (s *Store) LoadRanges() ([]RangeRecord, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var out []RangeRecord
	for ok := iter.Seek(rangePrefix); ok; ok = iter.Next() {
		key := iter.Key()
		if len(key) < len(rangePrefix) || string(key[:len(rangePrefix)]) != string(rangePrefix) {
			break
		}
		var r RangeRecord
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			return nil, fmt.Errorf("storedb: unmarshal range record: %w", err)
		}
		out = append(out, r)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("storedb: iterate ranges: %w", err)
	}
	return out, nil
}

// ClearRanges deletes every persisted work-range record, used when a
// new configure_search call regenerates the ledger from scratch.
func (s *Store) ClearRanges() error {
	recs, err := s.LoadRanges()
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for _, r := range recs {
		batch.Delete(rangeKey(r.ID))
	}
	return s.db.Write(batch, nil)
}
