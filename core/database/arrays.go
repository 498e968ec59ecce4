package database

import "github.com/google/uuid"

// UUIDStrings converts ids for use with pq.Array; uuid.UUID is a byte array
// and would otherwise be encoded as a nested array.
func UUIDStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
