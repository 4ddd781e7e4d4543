package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/algo-comp/comp"
	"github.com/cwbudde/algo-comp/internal/compcommon"
	"github.com/cwbudde/algo-comp/session"
)

// refSession is one reference comp: the takes' metrics plus the take the
// engineer picked for each manually assigned segment.
type refSession struct {
	takes       []comp.Take
	wantTakeIDs []string
}

func main() {
	sessionsGlob := flag.String("sessions", "sessions/*.json", "Glob of session JSON files with reference assignments and pinned metrics")
	outputConfig := flag.String("output-config", "out/fit/weights.json", "Path to write the fitted engine config JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-config>.report.json)")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 30.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 20000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 500, "Print progress every N evaluations")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in report")
	resume := flag.Bool("resume", true, "Resume from previous best_knobs report when available")
	resumeReport := flag.String("resume-report", "", "Optional report JSON path to resume from (default: current report path)")
	workers := flag.String("workers", "1", "Parallel optimization workers running independent Mayfly rounds (number or 'auto')")

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	flag.Parse()

	if *outputConfig == "" {
		die("output-config must not be empty")
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *reportEvery < 1 {
		*reportEvery = 1
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	if *topK < 1 {
		*topK = 1
	}
	parsedWorkers, err := parseWorkersFlag(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}

	paths, err := filepath.Glob(*sessionsGlob)
	if err != nil {
		die("invalid -sessions glob: %v", err)
	}
	if len(paths) == 0 {
		die("no session files match %q", *sessionsGlob)
	}
	sort.Strings(paths)

	refs, totalTakes, totalAssignments, err := loadReferenceSessions(paths)
	if err != nil {
		die("failed to load reference sessions: %v", err)
	}
	fmt.Printf("Loaded %d sessions (%d takes, %d reference assignments)\n", len(refs), totalTakes, totalAssignments)

	base := comp.DefaultConfig()
	defs := weightKnobs()
	initCand := initCandidate(defs, base)
	if *resume {
		resumePath := *resumeReport
		if resumePath == "" {
			if *reportPath != "" {
				resumePath = *reportPath
			} else {
				resumePath = *outputConfig + ".report.json"
			}
		}
		if resumed, ok, err := loadCandidateFromReport(resumePath, defs, initCand); err != nil {
			fmt.Fprintf(os.Stderr, "resume skipped (%s): %v\n", resumePath, err)
		} else if ok {
			initCand = resumed
			fmt.Printf("Resumed candidate from %s\n", resumePath)
		}
	}

	cfg := &optimizationConfig{
		refs:             refs,
		base:             base,
		defs:             defs,
		initCandidate:    initCand,
		seed:             *seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		mayflyVariant:    *mayflyVariant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          parsedWorkers,
		topK:             *topK,
	}

	result, err := runOptimization(cfg)
	if err != nil {
		die("optimization failed: %v", err)
	}

	fitted := result.bestEval.weights
	if err := writeConfigJSON(*outputConfig, fitted); err != nil {
		die("failed to write fitted config: %v", err)
	}
	rp := *reportPath
	if rp == "" {
		rp = *outputConfig + ".report.json"
	}
	rep := runReport{
		SessionPaths:  paths,
		Takes:         totalTakes,
		Assignments:   totalAssignments,
		MayflyVariant: strings.ToLower(*mayflyVariant),
	}
	if err := writeReportJSON(rp, defs, result.best, result, rep); err != nil {
		die("failed to write report: %v", err)
	}

	fmt.Printf("Done evals=%d elapsed=%.1fs best_loss=%.4f agreement=%.2f%% weights=%.3f/%.3f/%.3f variant=%s\n",
		result.evals, result.elapsed, result.bestEval.loss, result.bestEval.agreement*100.0,
		fitted.TimingWeight, fitted.QualityWeight, fitted.ClippingWeight, strings.ToLower(*mayflyVariant))
}

// loadReferenceSessions loads fit inputs. Every take needs pinned metrics
// (fitting never opens audio) and every session needs at least one manual
// assignment to act as the reference pick.
func loadReferenceSessions(paths []string) ([]refSession, int, int, error) {
	refs := make([]refSession, 0, len(paths))
	takes := 0
	assignments := 0
	for _, p := range paths {
		sess, err := session.LoadJSON(p)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("session %s: %w", p, err)
		}
		if len(sess.Assignments) == 0 {
			return nil, 0, 0, fmt.Errorf("session %s has no reference assignments", p)
		}
		ref := refSession{}
		for i := range sess.Takes {
			entry := &sess.Takes[i]
			if !entry.Complete() {
				return nil, 0, 0, fmt.Errorf("session %s: take %q needs pinned metrics (run comp-analyze first)", p, entry.ID)
			}
			ref.takes = append(ref.takes, comp.Take{ID: entry.ID, Metrics: entry.Merge(comp.Metrics{})})
		}
		for _, a := range sess.Assignments {
			ref.wantTakeIDs = append(ref.wantTakeIDs, a.TakeID)
		}
		takes += len(ref.takes)
		assignments += len(ref.wantTakeIDs)
		refs = append(refs, ref)
	}
	return refs, takes, assignments, nil
}

func parseWorkersFlag(raw string) (int, error) {
	return compcommon.ParseWorkers(raw)
}

func loadCandidateFromReport(path string, defs []knobDef, fallback candidate) (candidate, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, false, nil
		}
		return fallback, false, err
	}

	var rep struct {
		BestKnobs map[string]float64 `json:"best_knobs"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return fallback, false, err
	}
	if len(rep.BestKnobs) == 0 {
		return fallback, false, nil
	}

	vals := make([]float64, len(fallback.Vals))
	copy(vals, fallback.Vals)
	updated := false
	for i, d := range defs {
		if v, ok := rep.BestKnobs[d.Name]; ok {
			vals[i] = clamp(v, d.Min, d.Max)
			updated = true
		}
	}
	if !updated {
		return fallback, false, nil
	}
	return candidate{Vals: vals}, true, nil
}
