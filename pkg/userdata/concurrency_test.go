package userdata_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calvinalkan/udstore/pkg/userdata"
)

func Test_GetOrSet_Invokes_Factory_Once_Under_Contention(t *testing.T) {
	t.Parallel()

	const goroutines = 8

	slot := userdata.NewSlot[int64]()
	h := mustBind(t, &thing{name: "contended"})

	var (
		counter atomic.Int64
		start   = make(chan struct{})
		wg      sync.WaitGroup
		results [goroutines]int64
	)

	for i := range goroutines {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			v, err := userdata.GetOrSet(h, slot, func() (int64, error) {
				return counter.Add(1), nil
			})
			if err != nil {
				t.Errorf("GetOrSet: %v", err)

				return
			}

			results[i] = v
		}()
	}

	close(start)
	wg.Wait()

	if got := counter.Load(); got != 1 {
		t.Fatalf("factory ran %d times, want exactly 1", got)
	}

	for i, v := range results {
		if v != results[0] {
			t.Fatalf("goroutine %d observed %d, goroutine 0 observed %d; all racers must agree", i, v, results[0])
		}
	}
}

func Test_Concurrent_First_Writers_Share_One_Store(t *testing.T) {
	t.Parallel()

	const goroutines = 16

	slot := userdata.NewSlot[int]()
	o := &thing{name: "fresh"}

	var (
		factoryRuns atomic.Int64
		start       = make(chan struct{})
		wg          sync.WaitGroup
	)

	// Every goroutine binds independently, so store creation itself races,
	// not just the slot write. A duplicate store would let the factory run
	// more than once.
	for range goroutines {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			h, err := userdata.Bind(o)
			if err != nil {
				t.Errorf("Bind: %v", err)

				return
			}

			_, err = userdata.GetOrSet(h, slot, func() (int, error) {
				factoryRuns.Add(1)

				return 1, nil
			})
			if err != nil {
				t.Errorf("GetOrSet: %v", err)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := factoryRuns.Load(); got != 1 {
		t.Fatalf("factory ran %d times across racing creators, want 1", got)
	}
}

func Test_Readers_And_Writers_On_One_Host_Stay_Consistent(t *testing.T) {
	t.Parallel()

	const (
		writers    = 4
		readers    = 4
		iterations = 2000
	)

	slot := userdata.NewSlot[int]()
	h := mustBind(t, &thing{name: "soak"})

	var wg sync.WaitGroup

	for w := range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range iterations {
				if i%3 == 0 {
					userdata.Remove(h, slot)
				} else {
					userdata.Set(h, slot, w)
				}
			}
		}()
	}

	for range readers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range iterations {
				// Every observed value must be something some writer wrote;
				// absence is fine, torn or foreign values are not.
				if v, ok := userdata.TryGet(h, slot); ok && (v < 0 || v >= writers) {
					t.Errorf("read value %d never written by any writer", v)

					return
				}
			}
		}()
	}

	wg.Wait()
}

func Test_Opposite_Direction_Copies_Do_Not_Deadlock(t *testing.T) {
	t.Parallel()

	const iterations = 2000

	slot := userdata.NewSlot[int]()

	oa := &thing{name: "a"}
	ob := &thing{name: "b"}

	ha := mustBind(t, oa)
	hb := mustBind(t, ob)

	userdata.Set(ha, slot, 1)
	userdata.Set(hb, slot, 2)

	done := make(chan struct{})

	go func() {
		defer close(done)

		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()

			for range iterations {
				if err := ha.CopyTo(ob); err != nil {
					t.Errorf("CopyTo a->b: %v", err)

					return
				}
			}
		}()

		go func() {
			defer wg.Done()

			for range iterations {
				if err := hb.CopyTo(oa); err != nil {
					t.Errorf("CopyTo b->a: %v", err)

					return
				}
			}
		}()

		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("opposite-direction copies deadlocked")
	}
}

func Test_GetOrSet_Releases_Lock_After_Factory_Error(t *testing.T) {
	t.Parallel()

	slot := userdata.NewSlot[int]()
	h := mustBind(t, &thing{})

	_, err := userdata.GetOrSet(h, slot, func() (int, error) {
		return 0, errFactoryBoom
	})
	if err == nil {
		t.Fatal("expected factory error")
	}

	// A poisoned lock would hang here; give it a watchdog.
	done := make(chan struct{})

	go func() {
		userdata.Set(h, slot, 1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("write lock still held after factory error")
	}

	if got := userdata.Get(h, slot, 0); got != 1 {
		t.Fatalf("Set after failed factory = %d, want 1", got)
	}
}

var errFactoryBoom = errTest("factory boom")

type errTest string

func (e errTest) Error() string { return string(e) }

func Test_Unrelated_Hosts_Do_Not_Contend(t *testing.T) {
	t.Parallel()

	const (
		hostCount  = 8
		iterations = 1000
	)

	slot := userdata.NewSlot[int]()

	var wg sync.WaitGroup

	for i := range hostCount {
		wg.Add(1)

		go func() {
			defer wg.Done()

			h, err := userdata.Bind(&thing{name: "host"})
			if err != nil {
				t.Errorf("Bind: %v", err)

				return
			}

			for n := range iterations {
				userdata.Set(h, slot, n+i)

				if got := userdata.Get(h, slot, -1); got != n+i {
					t.Errorf("host %d read %d, want %d", i, got, n+i)

					return
				}
			}
		}()
	}

	wg.Wait()
}
