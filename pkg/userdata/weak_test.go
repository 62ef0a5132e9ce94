package userdata_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/calvinalkan/udstore/pkg/userdata"
)

// bindAndStash binds a freshly allocated host, stores a value, and returns
// only the identity key. The host itself never escapes this function, so
// after it returns nothing keeps the host reachable.
//
//go:noinline
func bindAndStash(t *testing.T, slot userdata.Slot[int]) uintptr {
	t.Helper()

	o := &thing{name: "ephemeral"}

	h, err := userdata.Bind(o)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	userdata.Set(h, slot, 1)

	key := userdata.HandleKeyForTesting(h)

	if !userdata.AssociationExistsForTesting(key) {
		t.Fatal("no association entry after Set")
	}

	return key
}

func Test_Association_Vanishes_When_Host_Becomes_Unreachable(t *testing.T) {
	// Not parallel: competing GC pressure makes the deadline flaky.
	slot := userdata.NewSlot[int]()

	key := bindAndStash(t, slot)

	// Cleanups run some time after the host is collected; force cycles until
	// the entry disappears or we give up.
	deadline := time.Now().Add(15 * time.Second)

	for userdata.AssociationExistsForTesting(key) {
		if time.Now().After(deadline) {
			t.Fatal("association entry still present long after host became unreachable")
		}

		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
}

func Test_Association_Survives_While_Host_Is_Reachable(t *testing.T) {
	t.Parallel()

	slot := userdata.NewSlot[int]()

	o := &thing{name: "pinned"}
	h := mustBind(t, o)

	userdata.Set(h, slot, 42)

	key := userdata.HandleKeyForTesting(h)

	for range 5 {
		runtime.GC()
	}

	if !userdata.AssociationExistsForTesting(key) {
		t.Fatal("association entry collected while host still reachable")
	}

	if got := userdata.Get(h, slot, 0); got != 42 {
		t.Fatalf("value lost across GC cycles: got %d, want 42", got)
	}

	runtime.KeepAlive(o)
}
