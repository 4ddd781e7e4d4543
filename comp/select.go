package comp

import (
	"fmt"
	"runtime"
	"sync"
)

// Mode selects how takes are assigned to segments. Exactly two variants
// exist, Auto and Manual; the tagged type keeps manual assignments out of
// auto-mode calls entirely.
type Mode interface {
	isMode()
}

// Auto picks the highest-scoring take for every segment. Ties go to the
// earliest take in input order.
type Auto struct{}

func (Auto) isMode() {}

// Manual applies caller-supplied assignments. Segments without an explicit
// assignment fall back to auto scoring for that segment only.
type Manual struct {
	// Assignments maps segment index to take ID.
	Assignments map[int]string
}

func (Manual) isMode() {}

// manualScore is recorded for segments whose take was fixed by the caller.
// All sub-scores are pinned to 1 so the weighted-sum relation between the
// breakdown fields still holds.
func manualScore() ScoreBreakdown {
	return ScoreBreakdown{Timing: 1, Quality: 1, Clipping: 1, Total: 1, Reason: "manual selection"}
}

// selectTakes annotates every segment with a selected take and score.
// Scoring is pure per (take, segment) pair, so segments are scored
// concurrently; each worker writes only its own segments.
func (e *Engine) selectTakes(takes []Take, segments []Segment, mode Mode) error {
	var assignments map[int]string
	if m, ok := mode.(Manual); ok {
		assignments = m.Assignments
		if err := validateAssignments(assignments, takes, len(segments)); err != nil {
			return err
		}
	}

	workers := runtime.NumCPU()
	if workers > len(segments) {
		workers = len(segments)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(segments); i += workers {
				if id, ok := assignments[segments[i].Index]; ok {
					segments[i].SelectedTakeID = id
					segments[i].Score = manualScore()
					continue
				}
				best := 0
				bestScore := ScoreTake(&takes[0], e.cfg)
				for j := 1; j < len(takes); j++ {
					if s := ScoreTake(&takes[j], e.cfg); s.Total > bestScore.Total {
						best, bestScore = j, s
					}
				}
				segments[i].SelectedTakeID = takes[best].ID
				segments[i].Score = bestScore
			}
		}(w)
	}
	wg.Wait()
	return nil
}

func validateAssignments(assignments map[int]string, takes []Take, segmentCount int) error {
	known := make(map[string]bool, len(takes))
	for i := range takes {
		known[takes[i].ID] = true
	}
	for idx, id := range assignments {
		if idx < 0 || idx >= segmentCount {
			return fmt.Errorf("%w: segment index %d outside [0,%d)", ErrManualAssignment, idx, segmentCount)
		}
		if !known[id] {
			return fmt.Errorf("%w: segment %d references unknown take %q", ErrManualAssignment, idx, id)
		}
	}
	return nil
}
