package aol

import (
	"errors"
	"slices"
)

// Strategy selects how Merge behaves when both logs have grown past their
// common point.
type Strategy string

const (
	// StrategyAbort refuses to merge diverged logs and asks the caller
	// to reconcile manually.
	StrategyAbort Strategy = "abort"
	// StrategyRebase re-chains the mergee's new facts onto the target's
	// tip, discarding their original chain hashes.
	StrategyRebase Strategy = "rebase"
)

// ErrNeedRebase is returned by Merge under StrategyAbort when the target
// log holds entries the mergee does not know about.
var ErrNeedRebase = errors.New(
	"target log has entries not present in the mergee: rebase the mergee's changes or merge with the rebase strategy")

// FindChanges returns the suffix of mergee that is not present in target,
// walking both logs from the tail in lock-step. If no common point is
// found the entire mergee is new; an empty target likewise makes the
// whole mergee new.
func FindChanges(target, mergee Log) Log {
	if len(target) == 0 {
		return mergee
	}
	targetSeen := make(map[string]bool)
	type seenHash struct {
		hash string
		idx  int
	}
	var mergeeSeen []seenHash
	steps := min(len(target), len(mergee))
	for i := 0; i < steps; i++ {
		targetHash := target[len(target)-1-i].ChainHash
		mergeeHash := mergee[len(mergee)-1-i].ChainHash
		// Either the chains line up at this step, or the mergee hash
		// already appeared further up the scanned target suffix.
		if targetHash == mergeeHash || targetSeen[mergeeHash] {
			return mergee[len(mergee)-i:]
		}
		targetSeen[targetHash] = true
		// A previously scanned mergee hash may only now have shown up in
		// the target suffix; this handles target having strictly more
		// trailing entries than mergee.
		for j := len(mergeeSeen) - 1; j >= 0; j-- {
			if targetSeen[mergeeSeen[j].hash] {
				return mergee[len(mergee)-mergeeSeen[j].idx:]
			}
		}
		mergeeSeen = append(mergeeSeen, seenHash{hash: mergeeHash, idx: i})
	}
	return mergee
}

// Merge merges mergee into target. With no divergence the result is the
// extended target (or, with diffOnly, the suffix mergee is missing). When
// both sides have grown past the common point the behavior depends on the
// strategy: StrategyAbort returns ErrNeedRebase, StrategyRebase appends
// each of mergee's new facts through Append, recomputing their chain
// hashes against the target's tip.
//
// With diffOnly the returned log is only the suffix that the mergee's
// owner must append after the common point to catch up, which keeps
// responses over a network boundary small.
func Merge(target, mergee Log, strategy Strategy, diffOnly bool) (Log, error) {
	newFromMergee := FindChanges(target, mergee)
	if len(newFromMergee) == 0 {
		if diffOnly {
			return FindChanges(mergee, target), nil
		}
		return target, nil
	}
	newFromTarget := FindChanges(mergee, target)
	if len(newFromTarget) > 0 && strategy != StrategyRebase {
		return nil, ErrNeedRebase
	}
	ret := slices.Clone(target)
	if diffOnly {
		if len(newFromTarget) == 0 {
			// The target absorbs the mergee's entries verbatim, so the
			// mergee is missing nothing.
			return Log{}, nil
		}
		// newFromTarget ends at the target's tip, so appending onto it
		// yields the same chain hashes as appending onto the full target.
		ret = slices.Clone(newFromTarget)
	}
	for _, entry := range newFromMergee {
		ret = Append(ret, entry.Fact)
	}
	return ret, nil
}
