package query

import "github.com/kivadb/kivadb/internal/types"

// Slice applies offset then limit. A limit <= 0 means no limit; an offset
// beyond the end yields an empty result.
func Slice(records []types.Record, limit, offset int) []types.Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []types.Record{}
	}
	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return records[offset:end]
}
