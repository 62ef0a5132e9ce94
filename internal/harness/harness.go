// Package harness drives the userdata store for the ud tooling: timed
// benchmark scenarios for `ud bench` and invariant-checking stress scenarios
// for `ud stress`. The REPL reuses the benchmark side.
//
// Everything here consumes the public userdata API only.
package harness

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calvinalkan/udstore/pkg/userdata"
)

// Options control how a scenario runs.
type Options struct {
	// Workers is the number of concurrent goroutines. Minimum 1.
	Workers int

	// Iterations is the per-worker operation count. Minimum 1.
	Iterations int
}

func (o Options) normalized() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}

	if o.Iterations < 1 {
		o.Iterations = 1
	}

	return o
}

// Result is one completed benchmark scenario.
type Result struct {
	Scenario   string        `json:"scenario"`
	Workers    int           `json:"workers"`
	Iterations int           `json:"iterations"`
	Ops        int64         `json:"ops"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	NsPerOp    float64       `json:"ns_per_op"`
}

// benchHost is the host type used by every scenario.
type benchHost struct {
	id int
}

// benchmark runners, keyed by scenario name.
var benchmarks = map[string]func(Options) int64{
	"bind":         benchBind,
	"get-hit":      benchGetHit,
	"get-miss":     benchGetMiss,
	"set":          benchSet,
	"getorset-hit": benchGetOrSetHit,
	"copy":         benchCopy,
}

// BenchmarkNames returns all benchmark scenario names, sorted.
func BenchmarkNames() []string {
	names := make([]string, 0, len(benchmarks))
	for name := range benchmarks {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// RunBenchmark executes one named benchmark scenario.
func RunBenchmark(name string, opts Options) (Result, error) {
	run, ok := benchmarks[name]
	if !ok {
		return Result{}, fmt.Errorf("unknown benchmark scenario: %q", name)
	}

	opts = opts.normalized()

	start := time.Now()
	ops := run(opts)
	elapsed := time.Since(start)

	return Result{
		Scenario:   name,
		Workers:    opts.Workers,
		Iterations: opts.Iterations,
		Ops:        ops,
		Elapsed:    elapsed,
		NsPerOp:    float64(elapsed.Nanoseconds()) / float64(ops),
	}, nil
}

// inParallel runs fn in opts.Workers goroutines and returns the total op
// count. Each worker gets its own id.
func inParallel(opts Options, fn func(worker int)) int64 {
	var wg sync.WaitGroup

	start := make(chan struct{})

	for w := range opts.Workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start
			fn(w)
		}()
	}

	close(start)
	wg.Wait()

	return int64(opts.Workers) * int64(opts.Iterations)
}

func benchBind(opts Options) int64 {
	hosts := make([]*benchHost, opts.Workers)
	for i := range hosts {
		hosts[i] = &benchHost{id: i}
	}

	return inParallel(opts, func(w int) {
		for range opts.Iterations {
			_, _ = userdata.Bind(hosts[w])
		}
	})
}

func benchGetHit(opts Options) int64 {
	slot := userdata.NewSlot[int]()

	// One shared host: workers contend on a single read lock.
	h, _ := userdata.Bind(&benchHost{})
	userdata.Set(h, slot, 1)

	return inParallel(opts, func(int) {
		for range opts.Iterations {
			_ = userdata.Get(h, slot, 0)
		}
	})
}

func benchGetMiss(opts Options) int64 {
	slot := userdata.NewSlot[int]()
	miss := userdata.NewSlot[int]()

	h, _ := userdata.Bind(&benchHost{})
	userdata.Set(h, slot, 1)

	return inParallel(opts, func(int) {
		for range opts.Iterations {
			_, _ = userdata.TryGet(h, miss)
		}
	})
}

func benchSet(opts Options) int64 {
	slot := userdata.NewSlot[int]()

	// Per-worker hosts: measures uncontended writes.
	hosts := make([]userdata.Handle, opts.Workers)
	for i := range hosts {
		hosts[i], _ = userdata.Bind(&benchHost{id: i})
	}

	return inParallel(opts, func(w int) {
		for n := range opts.Iterations {
			userdata.Set(hosts[w], slot, n)
		}
	})
}

func benchGetOrSetHit(opts Options) int64 {
	slot := userdata.NewSlot[int]()

	h, _ := userdata.Bind(&benchHost{})
	userdata.Set(h, slot, 1)

	return inParallel(opts, func(w int) {
		for range opts.Iterations {
			_, _ = userdata.GetOrSetFunc(h, slot, w, func(n int) (int, error) {
				return n, nil
			})
		}
	})
}

func benchCopy(opts Options) int64 {
	slot := userdata.NewSlot[int]()

	srcs := make([]userdata.Handle, opts.Workers)
	dsts := make([]*benchHost, opts.Workers)

	for i := range srcs {
		srcs[i], _ = userdata.Bind(&benchHost{id: i})
		dsts[i] = &benchHost{id: i + opts.Workers}

		userdata.Set(srcs[i], slot, i)
	}

	return inParallel(opts, func(w int) {
		for range opts.Iterations {
			_ = srcs[w].CopyTo(dsts[w])
		}
	})
}

// StressReport is one completed stress scenario. Violations lists every
// invariant breach observed; an empty list means the scenario passed.
type StressReport struct {
	Scenario   string   `json:"scenario"`
	Workers    int      `json:"workers"`
	Iterations int      `json:"iterations"`
	Violations []string `json:"violations,omitempty"`
}

// Passed reports whether the scenario observed no violations.
func (r StressReport) Passed() bool {
	return len(r.Violations) == 0
}

var stresses = map[string]func(Options) []string{
	"factory-once":      stressFactoryOnce,
	"copy-independence": stressCopyIndependence,
	"handle-equality":   stressHandleEquality,
	"copy-churn":        stressCopyChurn,
}

// StressNames returns all stress scenario names, sorted.
func StressNames() []string {
	names := make([]string, 0, len(stresses))
	for name := range stresses {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// RunStress executes one named stress scenario.
func RunStress(name string, opts Options) (StressReport, error) {
	run, ok := stresses[name]
	if !ok {
		return StressReport{}, fmt.Errorf("unknown stress scenario: %q", name)
	}

	opts = opts.normalized()

	return StressReport{
		Scenario:   name,
		Workers:    opts.Workers,
		Iterations: opts.Iterations,
		Violations: run(opts),
	}, nil
}

// stressFactoryOnce races workers on GetOrSet against fresh (host, slot)
// pairs: the factory must run exactly once per pair and every racer must
// observe the winning value.
func stressFactoryOnce(opts Options) []string {
	var violations []string

	for round := range opts.Iterations {
		slot := userdata.NewSlot[int64]()
		host := &benchHost{id: round}

		var counter atomic.Int64

		results := make([]int64, opts.Workers)

		inParallel(Options{Workers: opts.Workers, Iterations: 1}, func(w int) {
			h, err := userdata.Bind(host)
			if err != nil {
				return
			}

			v, err := userdata.GetOrSet(h, slot, func() (int64, error) {
				return counter.Add(1), nil
			})
			if err == nil {
				results[w] = v
			}
		})

		if got := counter.Load(); got != 1 {
			violations = append(violations,
				fmt.Sprintf("round %d: factory ran %d times, want 1", round, got))

			continue
		}

		for w, v := range results {
			if v != results[0] {
				violations = append(violations,
					fmt.Sprintf("round %d: worker %d saw %d, worker 0 saw %d", round, w, v, results[0]))

				break
			}
		}
	}

	return violations
}

// stressCopyIndependence checks that a copy taken at time T never changes,
// no matter how the source is mutated afterwards.
func stressCopyIndependence(opts Options) []string {
	var violations []string

	slot := userdata.NewSlot[int]()

	for round := range opts.Iterations {
		src, _ := userdata.Bind(&benchHost{id: round})
		target := &benchHost{id: round}

		userdata.Set(src, slot, round)

		if err := src.CopyTo(target); err != nil {
			violations = append(violations, fmt.Sprintf("round %d: CopyTo: %v", round, err))

			continue
		}

		dst, _ := userdata.Bind(target)

		inParallel(Options{Workers: opts.Workers, Iterations: 1}, func(w int) {
			userdata.Set(src, slot, -w-1)
		})

		if got := userdata.Get(dst, slot, -999); got != round {
			violations = append(violations,
				fmt.Sprintf("round %d: copy changed after source mutation: got %d, want %d", round, got, round))
		}
	}

	return violations
}

// stressHandleEquality binds the same host from many goroutines and checks
// all handles compare equal, while handles to a second host never do.
func stressHandleEquality(opts Options) []string {
	var violations []string

	for round := range opts.Iterations {
		one := &benchHost{id: round}
		two := &benchHost{id: round}

		ref, _ := userdata.Bind(one)
		other, _ := userdata.Bind(two)

		var mismatches atomic.Int64

		inParallel(Options{Workers: opts.Workers, Iterations: 1}, func(int) {
			h, err := userdata.Bind(one)
			if err != nil || h != ref || h == other {
				mismatches.Add(1)
			}
		})

		if n := mismatches.Load(); n != 0 {
			violations = append(violations,
				fmt.Sprintf("round %d: %d workers saw broken handle equality", round, n))
		}
	}

	return violations
}

// stressCopyChurn hammers opposite-direction copies between one pair of
// hosts. It passes when it terminates; a lock-ordering bug would deadlock
// and trip the caller's timeout instead.
func stressCopyChurn(opts Options) []string {
	slot := userdata.NewSlot[int]()

	a := &benchHost{id: 1}
	b := &benchHost{id: 2}

	ha, _ := userdata.Bind(a)
	hb, _ := userdata.Bind(b)

	userdata.Set(ha, slot, 1)
	userdata.Set(hb, slot, 2)

	var failures atomic.Int64

	inParallel(opts, func(w int) {
		for range opts.Iterations {
			var err error

			if w%2 == 0 {
				err = ha.CopyTo(b)
			} else {
				err = hb.CopyTo(a)
			}

			if err != nil {
				failures.Add(1)
			}
		}
	})

	if n := failures.Load(); n != 0 {
		return []string{fmt.Sprintf("%d copies failed", n)}
	}

	return nil
}
