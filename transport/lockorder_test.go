package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHandleAttachOrderingUnderRace stresses AttachExecutor/AttachReactor
// from many goroutines concurrently (run with -race), verifying spec.md
// §4.B/§5's invariant that a Handle has at most one reactor owner and at
// most one executor owner at any instant holds under contention, and that
// neither attach path observes the other's partially-updated state — the
// Executor → Reactor → Handle acquisition order callers follow never
// needs Handle itself to take more than its own single mutex.
func TestHandleAttachOrderingUnderRace(t *testing.T) {
	h := New()
	const n = 100

	var wg sync.WaitGroup
	successesExec := make([]bool, n)
	successesReactor := make([]bool, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			successesExec[i] = h.AttachExecutor(i) == nil
		}()
		go func() {
			defer wg.Done()
			successesReactor[i] = h.AttachReactor(i) == nil
		}()
	}
	wg.Wait()

	execWins := 0
	for _, ok := range successesExec {
		if ok {
			execWins++
		}
	}
	reactorWins := 0
	for _, ok := range successesReactor {
		if ok {
			reactorWins++
		}
	}
	require.Equal(t, 1, execWins, "exactly one AttachExecutor call may succeed")
	require.Equal(t, 1, reactorWins, "exactly one AttachReactor call may succeed")
	require.NotNil(t, h.ExecutorOwner())
	require.NotNil(t, h.ReactorOwner())
}
