package worker

import (
	"strconv"

	"github.com/iudanet/flocksync/internal/agent/leader"
)

// Diff lists, per table, the row IDs that must change locally for the
// follower to match its leader.
type Diff struct {
	Delete map[string][]int
	Add    map[string][]int
	Update map[string][]int
}

// Empty reports whether the diff requires no work.
func (d Diff) Empty() bool {
	return len(d.Delete) == 0 && len(d.Add) == 0 && len(d.Update) == 0
}

// ComputeDiff compares the local and leader last-modified summaries. A
// row present locally but not on the leader is a delete; present on both
// with different timestamps, an update; present only on the leader, an
// add. Row IDs are numeric on the wire but arrive as map keys (strings);
// unparseable IDs are skipped.
func ComputeDiff(local, remote leader.LastModified) Diff {
	diff := Diff{
		Delete: make(map[string][]int),
		Add:    make(map[string][]int),
		Update: make(map[string][]int),
	}

	for table, rows := range local {
		for rawID, modified := range rows {
			id, err := strconv.Atoi(rawID)
			if err != nil {
				continue
			}
			remoteModified, ok := remote[table][rawID]
			switch {
			case !ok:
				diff.Delete[table] = append(diff.Delete[table], id)
			case modified != remoteModified:
				diff.Update[table] = append(diff.Update[table], id)
			}
		}
	}
	for table, rows := range remote {
		for rawID := range rows {
			if _, ok := local[table][rawID]; ok {
				continue
			}
			id, err := strconv.Atoi(rawID)
			if err != nil {
				continue
			}
			diff.Add[table] = append(diff.Add[table], id)
		}
	}
	return diff
}

// BatchTables splits a table-to-row-IDs map into a sequence of maps of
// the same shape in which no ID list exceeds batchSize, so that no
// single row fetch asks the leader for too much at once.
func BatchTables(tables map[string][]int, batchSize int) []map[string][]int {
	var batches []map[string][]int
	for len(tables) > 0 {
		batch := make(map[string][]int)
		remainder := make(map[string][]int)
		for table, ids := range tables {
			if len(ids) == 0 {
				continue
			}
			if len(ids) > batchSize {
				batch[table] = ids[:batchSize]
				remainder[table] = ids[batchSize:]
			} else {
				batch[table] = ids
			}
		}
		if len(batch) == 0 {
			break
		}
		batches = append(batches, batch)
		tables = remainder
	}
	return batches
}
