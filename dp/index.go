package dp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// shard guards one top-level (first-x-byte) bucket of the trie: a
// 256×256 grid of growable record slices, indexed by the second and
// third key bytes, mirroring the fixed three-level FastBase layout.
type shard struct {
	mu      sync.Mutex
	buckets [256][256][]Record
}

// Index is a concurrent map from 12-byte x-prefix to the first Record
// seen with that prefix. It is sharded on the key's first byte so that
// FindOrInsert calls on different prefixes never contend.
type Index struct {
	shards [256]*shard
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	idx := &Index{}
	for i := range idx.shards {
		idx.shards[i] = &shard{}
	}
	return idx
}

// FindOrInsert atomically looks up rec.Key(). If a record with that key
// already exists, it is returned unchanged and rec is discarded. Otherwise
// rec is stored and nil is returned.
func (idx *Index) FindOrInsert(rec Record) *Record {
	s := idx.shards[rec.key[0]]
	b2, b3 := rec.key[1], rec.key[2]

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[b2][b3]
	for i := range bucket {
		if bucket[i].key == rec.key {
			found := bucket[i]
			return &found
		}
	}
	s.buckets[b2][b3] = append(bucket, rec)
	return nil
}

// Len returns the total number of stored records. It walks every shard
// under its lock and is intended for diagnostics, not hot paths.
func (idx *Index) Len() int {
	n := 0
	for _, s := range idx.shards {
		s.mu.Lock()
		for i := range s.buckets {
			for j := range s.buckets[i] {
				n += len(s.buckets[i][j])
			}
		}
		s.mu.Unlock()
	}
	return n
}

// Stats reports bucket occupancy: total records, number of non-empty
// (second,third)-byte buckets, and the single largest bucket's size —
// the same shape of diagnostic the fastbase-dump tooling computes over
// an on-disk tame file.
type Stats struct {
	Records     int
	NonEmpty    int
	LargestSize int
}

// Stats computes occupancy statistics across all shards.
func (idx *Index) Stats() Stats {
	var st Stats
	for _, s := range idx.shards {
		s.mu.Lock()
		for i := range s.buckets {
			for j := range s.buckets[i] {
				n := len(s.buckets[i][j])
				if n == 0 {
					continue
				}
				st.Records += n
				st.NonEmpty++
				if n > st.LargestSize {
					st.LargestSize = n
				}
			}
		}
		s.mu.Unlock()
	}
	return st
}

// EachRecord calls fn once per stored record. Shards are visited in
// order with their lock held for the duration of that shard's pass, so
// fn must not call back into the Index.
func (idx *Index) EachRecord(fn func(Record)) {
	for _, s := range idx.shards {
		s.mu.Lock()
		for i := range s.buckets {
			for j := range s.buckets[i] {
				for _, rec := range s.buckets[i][j] {
					fn(rec)
				}
			}
		}
		s.mu.Unlock()
	}
}

// SaveTameFile writes every stored record to path as a flat sequence of
// 41-byte wire records, for later preload via LoadTameFile.
func (idx *Index) SaveTameFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dp: create tame file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var writeErr error
	idx.EachRecord(func(rec Record) {
		if writeErr != nil {
			return
		}
		enc := rec.Encode()
		_, writeErr = w.Write(enc[:])
	})
	if writeErr != nil {
		return fmt.Errorf("dp: write tame file: %w", writeErr)
	}
	return w.Flush()
}

// LoadTameFile reads path as a flat sequence of 41-byte wire records and
// inserts each into idx, returning the count of records read.
func (idx *Index) LoadTameFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("dp: open tame file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	buf := make([]byte, EncodedSize)
	count := 0
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("dp: read tame file: %w", err)
		}
		rec, err := DecodeRecord(buf)
		if err != nil {
			return count, fmt.Errorf("dp: decode tame file record %d: %w", count, err)
		}
		idx.FindOrInsert(rec)
		count++
	}
	return count, nil
}
