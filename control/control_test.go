package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigStoreSetAndSnapshot(t *testing.T) {
	cs := NewConfigStore()
	cs.SetConfig(map[string]any{"a": 1})
	cs.SetConfig(map[string]any{"b": 2})
	snap := cs.GetSnapshot()
	require.Equal(t, 1, snap["a"])
	require.Equal(t, 2, snap["b"])
}

func TestConfigStoreDispatchesReloadHooks(t *testing.T) {
	cs := NewConfigStore()
	fired := make(chan struct{}, 1)
	cs.OnReload(func() { fired <- struct{}{} })
	cs.SetConfig(map[string]any{"k": "v"})
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("reload hook never fired")
	}
}

func TestExecutorConfigFallsBackToDefaults(t *testing.T) {
	cs := NewConfigStore()
	cfg := cs.ExecutorConfig(ExecutorConfig{IdlePollCapMs: 500, TimerSlackMs: 100})
	require.Equal(t, 500, cfg.IdlePollCapMs)
	require.Equal(t, 100, cfg.TimerSlackMs)

	cs.SetConfig(map[string]any{"executor.idle_poll_cap_ms": 10})
	cfg = cs.ExecutorConfig(ExecutorConfig{IdlePollCapMs: 500, TimerSlackMs: 100})
	require.Equal(t, 10, cfg.IdlePollCapMs)
	require.Equal(t, 100, cfg.TimerSlackMs, "unset key keeps the caller's default")
}

func TestWebSocketConfigReadsTypedKeys(t *testing.T) {
	cs := NewConfigStore()
	cs.SetConfig(map[string]any{"websocket.utf8_mode": 3, "websocket.max_frame_payload": 65536})
	cfg := cs.WebSocketConfig(WebSocketConfig{UTF8Mode: 1})
	require.Equal(t, 3, cfg.UTF8Mode)
	require.Equal(t, 65536, cfg.MaxFramePayload)
}

func TestTCPConfigReadsTypedKey(t *testing.T) {
	cs := NewConfigStore()
	cfg := cs.TCPConfig(TCPConfig{ReadBufferSize: 4096})
	require.Equal(t, 4096, cfg.ReadBufferSize)

	cs.SetConfig(map[string]any{"tcpclient.read_buffer_size": 8192})
	cfg = cs.TCPConfig(TCPConfig{ReadBufferSize: 4096})
	require.Equal(t, 8192, cfg.ReadBufferSize)
}

func TestDebugProbesDumpState(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("answer", func() any { return 42 })
	state := dp.DumpState()
	require.Equal(t, 42, state["answer"])
}

func TestRegisterPlatformProbesAddsCPUCount(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	state := dp.DumpState()
	require.Contains(t, state, "platform.cpus")
}

func TestMetricsRegistrySetAndSnapshot(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Set("requests", 5)
	snap := mr.GetSnapshot()
	require.Equal(t, 5, snap["requests"])
}

func TestTriggerHotReloadDispatchesRegisteredHooks(t *testing.T) {
	fired := make(chan struct{}, 1)
	RegisterReloadHook(func() { fired <- struct{}{} })
	TriggerHotReload()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("hot reload hook never fired")
	}
}
