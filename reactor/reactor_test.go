package reactor

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPollReportsReadableFD(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	defer r.Close()

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()
	defer pw.Close()

	_, err = pw.Write([]byte{1})
	require.NoError(t, err)

	ready, err := r.Poll([]Interest{{FD: pr.Fd(), Events: EventRead}}, time.Second)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	require.Equal(t, pr.Fd(), ready[0].FD)
}

func TestPollTimesOutWithNoReadyFD(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	defer r.Close()

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()
	defer pw.Close()

	start := time.Now()
	ready, err := r.Poll([]Interest{{FD: pr.Fd(), Events: EventRead}}, 50*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, ready)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWakeupInterruptsBlockedPoll(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	defer r.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Poll(nil, 5*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	r.Wakeup()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wakeup did not interrupt blocked Poll")
	}
}
