package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/wsloop/errs"
)

func TestHandleAttachDetachReactorExclusivity(t *testing.T) {
	h := New()
	require.NoError(t, h.AttachReactor("r1"))
	require.ErrorIs(t, h.AttachReactor("r2"), errs.ErrWrongReactor)
	require.Equal(t, "r1", h.ReactorOwner())

	h.DetachReactor("r2") // mismatched owner: no-op
	require.Equal(t, "r1", h.ReactorOwner())

	h.DetachReactor("r1")
	require.Nil(t, h.ReactorOwner())
	require.NoError(t, h.AttachReactor("r3"))
}

func TestHandleAttachDetachExecutorExclusivity(t *testing.T) {
	h := New()
	require.NoError(t, h.AttachExecutor("e1"))
	require.Error(t, h.AttachExecutor("e2"))
	h.DetachExecutor("e1")
	require.Nil(t, h.ExecutorOwner())
}

func TestHandleResetClearsState(t *testing.T) {
	h := New()
	require.NoError(t, h.SetURL("http://example.com/x"))
	require.NoError(t, h.SetMethod("POST"))
	require.NoError(t, h.SetHeader("X-Test", "1"))
	h.SetFlag(FlagVerbose, true)
	h.SetPause(PauseRecv, true)
	require.NoError(t, h.AttachReactor("r"))
	require.NoError(t, h.AttachExecutor("e"))

	h.Reset()

	require.Nil(t, h.URL)
	require.Equal(t, "", h.Method)
	require.Empty(t, h.Header)
	require.False(t, h.HasFlag(FlagVerbose))
	require.False(t, h.IsPaused(PauseRecv))
	require.Nil(t, h.ReactorOwner())
	require.Nil(t, h.ExecutorOwner())
}

func TestHandleSetURLRejectsUnsupportedScheme(t *testing.T) {
	h := New()
	require.Error(t, h.SetURL("ftp://example.com"))
}

func TestHandleFlagsAndPauseAreConcurrencySafe(t *testing.T) {
	h := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.SetFlag(FlagVerbose, true)
			h.SetFlag(FlagVerbose, false)
		}()
		go func() {
			defer wg.Done()
			h.SetPause(PauseSend, true)
			h.SetPause(PauseSend, false)
		}()
	}
	wg.Wait()
}

