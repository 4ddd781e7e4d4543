package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-comp/comp"
	"github.com/cwbudde/mayfly"
)

type topCandidate struct {
	Eval      int                `json:"eval"`
	Loss      float64            `json:"loss"`
	Agreement float64            `json:"agreement"`
	Knobs     map[string]float64 `json:"knobs"`
}

type optimizationConfig struct {
	refs             []refSession
	base             comp.Config
	defs             []knobDef
	initCandidate    candidate
	seed             int64
	timeBudget       float64
	maxEvals         int
	reportEvery      int
	mayflyVariant    string
	mayflyPop        int
	mayflyRoundEvals int
	workers          int
	topK             int
}

type optimizationEval struct {
	loss      float64
	agreement float64
	weights   comp.Config
}

type optimizationResult struct {
	best     candidate
	bestEval optimizationEval
	top      []topCandidate
	evals    int
	elapsed  float64
}

type optimizationState struct {
	mu       sync.Mutex
	best     candidate
	bestEval optimizationEval
	top      []topCandidate
}

func runOptimization(cfg *optimizationConfig) (*optimizationResult, error) {
	start := time.Now()
	deadline := start.Add(time.Duration(cfg.timeBudget * float64(time.Second)))
	variant := strings.ToLower(cfg.mayflyVariant)

	best := cloneCandidate(cfg.initCandidate)
	initialEval := evaluateCandidate(configFromCandidate(cfg.base, best), cfg.refs)
	fmt.Printf("Start loss=%.4f agreement=%.2f%%\n", initialEval.loss, initialEval.agreement*100.0)

	state := &optimizationState{
		best:     best,
		bestEval: initialEval,
		top:      updateTopCandidates(nil, cfg.topK, 1, initialEval, cfg.defs, best),
	}

	var evals int64 = 1
	var rounds int64
	var improves int64

	workers := cfg.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if time.Now().After(deadline) {
					return
				}
				if atomic.LoadInt64(&evals) >= int64(cfg.maxEvals) {
					return
				}

				round := int(atomic.AddInt64(&rounds, 1))
				remaining := cfg.maxEvals - int(atomic.LoadInt64(&evals))
				if remaining <= 0 {
					return
				}
				budget := minInt(cfg.mayflyRoundEvals, remaining)
				iters := maxInt(1, budget/(2*cfg.mayflyPop))

				mayflyConfig, err := newMayflyConfig(variant, cfg.mayflyPop, len(cfg.defs), iters)
				if err != nil {
					fmt.Fprintf(os.Stderr, "mayfly round %d setup failed: %v\n", round, err)
					return
				}
				mayflyConfig.Rand = rand.New(rand.NewSource(cfg.seed + int64(round)*7919))
				mayflyConfig.ObjectiveFunc = func(pos []float64) float64 {
					if time.Now().After(deadline) {
						return currentBestLoss(state) + 1.0
					}
					evalNum, ok := reserveEval(&evals, cfg.maxEvals)
					if !ok {
						return currentBestLoss(state) + 1.0
					}

					cand := fromNormalized(pos, cfg.defs)
					evalRes := evaluateCandidate(configFromCandidate(cfg.base, cand), cfg.refs)

					improved := false
					var improveNum int64
					var snapshot optimizationEval

					state.mu.Lock()
					state.top = updateTopCandidates(state.top, cfg.topK, int(evalNum), evalRes, cfg.defs, cand)
					if evalRes.loss < state.bestEval.loss {
						state.best = cloneCandidate(cand)
						state.bestEval = evalRes
						improved = true
						improveNum = atomic.AddInt64(&improves, 1)
						snapshot = evalRes
					}
					bestLoss := state.bestEval.loss
					state.mu.Unlock()

					if improved {
						fmt.Printf("Improved #%d eval=%d loss=%.4f agreement=%.2f%%\n", improveNum, evalNum, snapshot.loss, snapshot.agreement*100.0)
					}
					if cfg.reportEvery > 0 && evalNum%int64(cfg.reportEvery) == 0 {
						fmt.Printf("Progress eval=%d/%d elapsed=%.1fs best=%.4f\n", evalNum, cfg.maxEvals, time.Since(start).Seconds(), bestLoss)
					}
					return evalRes.loss
				}

				if _, err := runMayfly(mayflyConfig); err != nil {
					fmt.Fprintf(os.Stderr, "mayfly round %d failed: %v\n", round, err)
				}
			}
		}(i + 1)
	}
	wg.Wait()

	state.mu.Lock()
	finalBest := cloneCandidate(state.best)
	finalEval := state.bestEval
	finalTop := cloneTopCandidates(state.top)
	state.mu.Unlock()

	return &optimizationResult{
		best:     finalBest,
		bestEval: finalEval,
		top:      finalTop,
		evals:    int(atomic.LoadInt64(&evals)),
		elapsed:  time.Since(start).Seconds(),
	}, nil
}

// evaluateCandidate scores every take of every reference session under the
// candidate weights and counts how often the auto winner matches the take the
// engineer assigned. Loss is the disagreement fraction, so 0 means the
// weights reproduce every reference pick.
func evaluateCandidate(weights comp.Config, refs []refSession) optimizationEval {
	total := 0
	hits := 0
	for i := range refs {
		ref := &refs[i]
		winner := ""
		best := math.Inf(-1)
		for j := range ref.takes {
			b := comp.ScoreTake(&ref.takes[j], weights)
			if b.Total > best {
				best = b.Total
				winner = ref.takes[j].ID
			}
		}
		for _, want := range ref.wantTakeIDs {
			total++
			if want == winner {
				hits++
			}
		}
	}
	if total == 0 {
		return optimizationEval{loss: 1.0, weights: weights}
	}
	agreement := float64(hits) / float64(total)
	return optimizationEval{loss: 1.0 - agreement, agreement: agreement, weights: weights}
}

func cloneCandidate(c candidate) candidate {
	vals := make([]float64, len(c.Vals))
	copy(vals, c.Vals)
	return candidate{Vals: vals}
}

func cloneTopCandidates(in []topCandidate) []topCandidate {
	out := make([]topCandidate, len(in))
	for i := range in {
		entry := topCandidate{
			Eval:      in[i].Eval,
			Loss:      in[i].Loss,
			Agreement: in[i].Agreement,
			Knobs:     make(map[string]float64, len(in[i].Knobs)),
		}
		for k, v := range in[i].Knobs {
			entry.Knobs[k] = v
		}
		out[i] = entry
	}
	return out
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = maxInt(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func reserveEval(evals *int64, maxEvals int) (int64, bool) {
	for {
		cur := atomic.LoadInt64(evals)
		if cur >= int64(maxEvals) {
			return 0, false
		}
		if atomic.CompareAndSwapInt64(evals, cur, cur+1) {
			return cur + 1, true
		}
	}
}

func currentBestLoss(state *optimizationState) float64 {
	state.mu.Lock()
	loss := state.bestEval.loss
	state.mu.Unlock()
	return loss
}

func updateTopCandidates(top []topCandidate, topK int, eval int, evalRes optimizationEval, defs []knobDef, cand candidate) []topCandidate {
	entry := topCandidate{
		Eval:      eval,
		Loss:      evalRes.loss,
		Agreement: evalRes.agreement,
		Knobs:     make(map[string]float64, len(defs)),
	}
	for i, d := range defs {
		entry.Knobs[d.Name] = cand.Vals[i]
	}
	top = append(top, entry)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Loss == top[j].Loss {
			return top[i].Eval < top[j].Eval
		}
		return top[i].Loss < top[j].Loss
	})
	if len(top) > topK {
		top = top[:topK]
	}
	return top
}
