// Package aol implements the hash-chained append-only log of facts that
// flocksync uses to record and reconcile configuration state.
//
// An Entry is a fact plus two hashes: the content hash of the fact itself
// and a chain hash that links the entry to its predecessor. Recomputing
// every chain hash from the start of a log must reproduce the stored
// values exactly, so any reordering, deletion or edit is detectable.
package aol

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Fact is a single atomic assertion about an entity: an EAVT quad of
// entity ID, attribute name, value and UTC timestamp. Facts are immutable
// once created.
type Fact struct {
	Entity    string
	Attribute string
	Value     string
	Time      string
}

// MarshalJSON encodes the fact as a 4-element JSON array, which keeps the
// on-disk format compact and order-dependent.
func (f Fact) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]string{f.Entity, f.Attribute, f.Value, f.Time})
}

// UnmarshalJSON decodes a fact from its 4-element JSON array form.
func (f *Fact) UnmarshalJSON(data []byte) error {
	var quad [4]string
	if err := json.Unmarshal(data, &quad); err != nil {
		return fmt.Errorf("failed to decode fact: %w", err)
	}
	f.Entity, f.Attribute, f.Value, f.Time = quad[0], quad[1], quad[2], quad[3]
	return nil
}

// Entry is a fact together with its content hash and the running chain
// hash that links it to the preceding entry.
type Entry struct {
	Fact      Fact
	Hash      string
	ChainHash string
}

// MarshalJSON encodes the entry as a 3-element JSON array: fact, fact
// hash, chain hash.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{e.Fact, e.Hash, e.ChainHash})
}

// UnmarshalJSON decodes an entry from its 3-element JSON array form.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var parts [3]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("failed to decode entry: %w", err)
	}
	if err := json.Unmarshal(parts[0], &e.Fact); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[1], &e.Hash); err != nil {
		return fmt.Errorf("failed to decode fact hash: %w", err)
	}
	if err := json.Unmarshal(parts[2], &e.ChainHash); err != nil {
		return fmt.Errorf("failed to decode chain hash: %w", err)
	}
	return nil
}

// Log is an ordered, append-only sequence of entries. Entries are never
// mutated or removed, only appended.
type Log []Entry

// ErrHashNotFound is returned by SuffixAfter when the reference hash does
// not occur anywhere in the log, for example because the log was truncated
// out from under the caller.
var ErrHashNotFound = errors.New("chain hash not found in log")

// Now returns the current UTC time formatted for storage in a fact.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func hashBytes(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFact returns the content hash of the serialized fact.
func HashFact(f Fact) string {
	data, _ := f.MarshalJSON()
	return hashBytes(data)
}

// chainHash computes the running hash of an entry given the previous
// entry's chain hash (empty for the first entry) and the fact hash.
func chainHash(prev, factHash string) string {
	var pair [2]any
	if prev != "" {
		pair[0] = prev
	}
	pair[1] = factHash
	data, _ := json.Marshal(pair)
	return hashBytes(data)
}

// Append appends fact to the log, computing its content hash and chaining
// it onto the current tip. It never errors and returns the extended log.
// It has the builtin append's aliasing semantics: growing two logs
// branched from the same prefix can write through a shared backing array,
// so clone the prefix before branching.
func Append(log Log, f Fact) Log {
	factHash := HashFact(f)
	return append(log, Entry{
		Fact:      f,
		Hash:      factHash,
		ChainHash: chainHash(TipHash(log), factHash),
	})
}

// TipHash returns the chain hash at the tip of the log, or the empty
// string if the log is empty.
func TipHash(log Log) string {
	if len(log) == 0 {
		return ""
	}
	return log[len(log)-1].ChainHash
}

// SuffixAfter returns all entries after the one whose chain hash equals
// hash. An empty hash means the whole log. An unknown hash is an explicit
// error (ErrHashNotFound) rather than a silent everything-or-nothing
// answer.
func SuffixAfter(log Log, hash string) (Log, error) {
	if hash == "" {
		return log, nil
	}
	for i, entry := range log {
		if entry.ChainHash == hash {
			return log[i+1:], nil
		}
	}
	return nil, ErrHashNotFound
}

// Verify recomputes every hash in the log from scratch and reports the
// index of the first entry whose stored hashes do not match, or -1 if the
// whole chain is intact.
func Verify(log Log) int {
	prev := ""
	for i, entry := range log {
		factHash := HashFact(entry.Fact)
		if entry.Hash != factHash || entry.ChainHash != chainHash(prev, factHash) {
			return i
		}
		prev = entry.ChainHash
	}
	return -1
}
