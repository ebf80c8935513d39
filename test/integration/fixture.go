package integration

import (
	"fmt"

	"github.com/tracekit/spanql/pkg/types"
)

// fixtureDurations holds a captured JetStream3 run: measured durations in
// nanoseconds per benchmark and subtest, one entry per iteration.
var fixtureDurations = []struct {
	benchmark string
	subtest   string
	durs      []int64
}{
	{"Air", "First", []int64{9639007, 9812586, 10008837}},
	{"Air", "Worst", []int64{10490546, 10704639, 10918732}},
	{"Air", "Average", []int64{8627739, 8803815, 8979892}},

	{"Basic", "First", []int64{51949392, 53009584, 54069775}},
	{"Basic", "Worst", []int64{56672064, 57828637, 58985210}},
	{"Basic", "Average", []int64{46608800, 47560000, 48511200}},

	{"ML", "First", []int64{229543825, 234228393, 238912961}},
	{"ML", "Worst", []int64{250411446, 255521883, 260632321}},
	{"ML", "Average", []int64{205945862, 210148839, 214351815}},

	// WSL runs once; its two subtests are a degenerate single-iteration case.
	{"WSL", "WSL-mainRun", []int64{161290323}},
	{"WSL", "WSL-stdlib", []int64{140845070}},

	{"cdjs", "First", []int64{34754875, 35464158, 36173441}},
	{"cdjs", "Worst", []int64{37914409, 38688172, 39461936}},
	{"cdjs", "Average", []int64{31181944, 31818310, 32454676}},

	{"crypto", "First", []int64{80904791, 82555909, 84207027}},
	{"crypto", "Worst", []int64{88259772, 90060992, 91862212}},
	{"crypto", "Average", []int64{72587476, 74068853, 75550230}},

	{"gaussian-blur", "First", []int64{101756541, 103833205, 105909869}},
	{"gaussian-blur", "Worst", []int64{111007136, 113272587, 115538039}},
	{"gaussian-blur", "Average", []int64{91295588, 93158764, 95021939}},

	{"proxy", "First", []int64{55827967, 56967313, 58106659}},
	{"proxy", "Worst", []int64{60903236, 62146159, 63389083}},
	{"proxy", "Average", []int64{50088643, 51110860, 53355517}},
}

// fixtureEvents expands the captured durations into slice events, plus
// harness spans without a top_level_name that scoring must ignore.
func fixtureEvents() []types.Event {
	var events []types.Event
	id := int64(1)
	for _, fd := range fixtureDurations {
		for iter, dur := range fd.durs {
			events = append(events, types.Event{
				ID:           id,
				Name:         fmt.Sprintf("%s/%s", fd.benchmark, fd.subtest),
				TopLevelName: fd.benchmark,
				Iteration:    int64(iter),
				Subtest:      fd.subtest,
				Dur:          dur,
			})
			id++
		}
	}

	events = append(events,
		types.Event{ID: id, Name: "runner-setup", TopLevelName: "", Iteration: 0, Subtest: "", Dur: 4213377},
		types.Event{ID: id + 1, Name: "runner-teardown", TopLevelName: "", Iteration: 0, Subtest: "", Dur: 901220},
	)
	return events
}

// goldenBenchmarkScores is the expected benchmark_score output under
// format('%.5f', score), ordered by name.
var goldenBenchmarkScores = [][2]string{
	{"Air", "513.20932"},
	{"Basic", "95.02534"},
	{"ML", "21.50574"},
	{"WSL", "33.17378"},
	{"cdjs", "142.03788"},
	{"crypto", "61.01627"},
	{"gaussian-blur", "48.51294"},
	{"proxy", "88.20240"},
}

// goldenOverallScore is the expected chrome_jetstream_3_score() under
// format('%.5f', ...).
const goldenOverallScore = "77.41656"
