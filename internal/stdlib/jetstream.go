// Package stdlib holds the module definitions shipped with the engine.
package stdlib

import (
	"github.com/tracekit/spanql/internal/module"
	"github.com/tracekit/spanql/pkg/types"
)

// ChromeJetstream3 returns the chrome.jetstream_3 module. It derives
// JetStream-style scores from the slice table:
//
//	measure          events with a benchmark label, tagged with the suite
//	reference        static per-suite reference times
//	subtest_score    AVG over iterations of reference_ns / dur
//	benchmark_score  geometric mean of a benchmark's subtest scores
//	score()          geometric mean of all benchmark scores
func ChromeJetstream3() *module.Module {
	return &module.Module{
		Name: "chrome.jetstream_3",
		Tables: []*module.TableDef{
			{
				Name: "chrome_jetstream_3_measure",
				SQL: `SELECT s.name AS name, s.top_level_name AS top_level_name,
						s.iteration AS iteration, s.subtest AS subtest, s.dur AS dur,
						'JetStream3' AS suite
					FROM slice AS s
					WHERE s.top_level_name <> ''`,
			},
			{
				Name: "chrome_jetstream_3_reference",
				Static: &module.StaticTable{
					Columns: []string{"suite", "reference_ns"},
					Types:   []types.ColumnType{types.TypeString, types.TypeFloat},
					Rows: [][]interface{}{
						{"JetStream3", 5000000000.0},
					},
				},
			},
			{
				Name: "chrome_jetstream_3_subtest_score",
				SQL: `SELECT m.top_level_name AS name, m.subtest AS subtest,
						AVG(r.reference_ns / m.dur) AS score
					FROM chrome_jetstream_3_measure AS m
					JOIN chrome_jetstream_3_reference AS r ON m.suite = r.suite
					GROUP BY m.top_level_name, m.subtest`,
			},
			{
				Name: "chrome_jetstream_3_benchmark_score",
				SQL: `SELECT name, GEOMEAN(score) AS score
					FROM chrome_jetstream_3_subtest_score
					GROUP BY name`,
			},
		},
		Functions: []*module.FunctionDef{
			{
				Name: "chrome_jetstream_3_score",
				SQL:  `SELECT GEOMEAN(score) FROM chrome_jetstream_3_benchmark_score`,
			},
		},
	}
}

// RegisterBuiltins registers every shipped module with the registry.
func RegisterBuiltins(reg *module.Registry) error {
	return reg.Register(ChromeJetstream3())
}
