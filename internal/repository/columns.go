package repository

import (
	"sort"

	"github.com/google/uuid"
)

// changedColumns lists the keys of an update map in a stable order for logs.
func changedColumns(changes map[string]any) []string {
	cols := make([]string, 0, len(changes))
	for k := range changes {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// validID reports whether id can be compared against a uuid column. Postgres
// rejects malformed literals with 22P02, so callers answer "not found" first.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validIDs drops entries validID rejects.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			out = append(out, id)
		}
	}
	return out
}
