package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tracekit/spanql/pkg/types"
)

// LoadSQLite reads events from a SQLite trace export. Trace tooling
// commonly exports span data as a database with a "slice" table whose
// columns mirror the store schema.
func LoadSQLite(path string) ([]types.Event, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite export: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(
		"SELECT id, name, top_level_name, iteration, subtest, dur FROM slice ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: querying sqlite export: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var ev types.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.TopLevelName, &ev.Iteration, &ev.Subtest, &ev.Dur); err != nil {
			return nil, fmt.Errorf("store: scanning sqlite row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: reading sqlite export: %w", err)
	}
	return events, nil
}
