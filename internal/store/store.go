// Package store provides the read-only columnar event store that all
// queries scan. A store is immutable after Load, so any number of
// queries may scan it concurrently.
package store

import (
	"encoding/binary"
	"fmt"

	"github.com/spaolacci/murmur3"
	"github.com/tracekit/spanql/pkg/types"
)

// TableName is the name under which the event store is exposed to queries.
const TableName = "slice"

// Column names of the slice table, in scan order.
const (
	ColID           = "id"
	ColName         = "name"
	ColTopLevelName = "top_level_name"
	ColIteration    = "iteration"
	ColSubtest      = "subtest"
	ColDur          = "dur"
)

// Columns returns the slice table schema in scan order.
func Columns() []string {
	return []string{ColID, ColName, ColTopLevelName, ColIteration, ColSubtest, ColDur}
}

// ColumnTypes returns the declared type of each slice column, matching Columns.
func ColumnTypes() []types.ColumnType {
	return []types.ColumnType{
		types.TypeInt, types.TypeString, types.TypeString,
		types.TypeInt, types.TypeString, types.TypeInt,
	}
}

// Handle is a loaded, immutable event dataset stored column-wise.
type Handle struct {
	ids         []int64
	names       []string
	topLevels   []string
	iterations  []int64
	subtests    []string
	durs        []int64
	fingerprint uint64
}

// Load builds a Handle from a sequence of events. The input slice is
// copied; later mutation of it does not affect the store.
func Load(events []types.Event) (*Handle, error) {
	h := &Handle{
		ids:        make([]int64, len(events)),
		names:      make([]string, len(events)),
		topLevels:  make([]string, len(events)),
		iterations: make([]int64, len(events)),
		subtests:   make([]string, len(events)),
		durs:       make([]int64, len(events)),
	}
	for i, ev := range events {
		if ev.Iteration < 0 {
			return nil, fmt.Errorf("store: event %d: negative iteration %d: %w", ev.ID, ev.Iteration, types.ErrData)
		}
		if ev.Dur < 0 {
			return nil, fmt.Errorf("store: event %d: negative duration %d: %w", ev.ID, ev.Dur, types.ErrData)
		}
		h.ids[i] = ev.ID
		h.names[i] = ev.Name
		h.topLevels[i] = ev.TopLevelName
		h.iterations[i] = ev.Iteration
		h.subtests[i] = ev.Subtest
		h.durs[i] = ev.Dur
		h.fingerprint ^= eventHash(ev)
	}
	return h, nil
}

// NumEvents returns the number of loaded events.
func (h *Handle) NumEvents() int {
	return len(h.ids)
}

// Fingerprint returns an order-insensitive hash of the loaded dataset.
// Two handles loaded from the same events in any order share a fingerprint.
func (h *Handle) Fingerprint() uint64 {
	return h.fingerprint
}

// Cursor iterates over the rows of a store table.
type Cursor struct {
	h   *Handle
	pos int
	row []interface{}
}

// Scan returns a cursor over the named table. The only base table is
// "slice"; any other name is a schema error.
func (h *Handle) Scan(table string) (*Cursor, error) {
	if table != TableName {
		return nil, fmt.Errorf("store: table %q: %w", table, types.ErrSchema)
	}
	return &Cursor{h: h, pos: -1, row: make([]interface{}, len(Columns()))}, nil
}

// Next advances the cursor. It returns false once the table is exhausted.
func (c *Cursor) Next() bool {
	c.pos++
	if c.pos >= len(c.h.ids) {
		return false
	}
	c.row[0] = c.h.ids[c.pos]
	c.row[1] = c.h.names[c.pos]
	c.row[2] = c.h.topLevels[c.pos]
	c.row[3] = c.h.iterations[c.pos]
	c.row[4] = c.h.subtests[c.pos]
	c.row[5] = c.h.durs[c.pos]
	return true
}

// Row returns the current row. The returned slice is reused by the next
// call to Next; callers that retain rows must copy them.
func (c *Cursor) Row() []interface{} {
	return c.row
}

// eventHash computes a canonical per-event hash. XOR-combining these per
// event makes the dataset fingerprint independent of load order.
func eventHash(ev types.Event) uint64 {
	hasher := murmur3.New64()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(ev.ID))
	hasher.Write(buf[:])
	hasher.Write([]byte(ev.Name))
	hasher.Write([]byte{0})
	hasher.Write([]byte(ev.TopLevelName))
	hasher.Write([]byte{0})
	binary.LittleEndian.PutUint64(buf[:], uint64(ev.Iteration))
	hasher.Write(buf[:])
	hasher.Write([]byte(ev.Subtest))
	hasher.Write([]byte{0})
	binary.LittleEndian.PutUint64(buf[:], uint64(ev.Dur))
	hasher.Write(buf[:])

	return hasher.Sum64()
}
