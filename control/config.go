// File: control/config.go
//
// Thread-safe configuration store with dynamic update and hot-reload
// propagation; wsloop uses one as the backing store for runtime-tunable
// values such as the default WebSocket UTF8 mode and the executor idle
// poll cap (executor.Executor and websocket.Dial read these keys).

package control

import (
	"sync"
)

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:    make(map[string]any),
		listeners: make([]func(), 0),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	copy := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		copy[k] = v
	}
	return copy
}

// SetConfig merges new values and dispatches reload if needed.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	cs.dispatchReload()
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// ExecutorConfig is the typed view of the "executor.*" keys a ConfigStore
// carries. IdlePollCapMs bounds how long Executor.run blocks in Poll while
// idle; TimerSlackMs is added to the next timer deadline when computing
// that same poll timeout, so nearby timers coalesce into one wakeup
// instead of one Poll call per timer.
type ExecutorConfig struct {
	IdlePollCapMs int
	TimerSlackMs  int
}

// ExecutorConfig reads "executor.idle_poll_cap_ms" and
// "executor.timer_slack_ms" out of the current snapshot, falling back to
// defaults for any key not yet set, for a non-positive idle poll cap, and
// for a negative timer slack (a slack of 0 is accepted).
func (cs *ConfigStore) ExecutorConfig(defaults ExecutorConfig) ExecutorConfig {
	snap := cs.GetSnapshot()
	cfg := defaults
	if v, ok := snap["executor.idle_poll_cap_ms"].(int); ok && v > 0 {
		cfg.IdlePollCapMs = v
	}
	if v, ok := snap["executor.timer_slack_ms"].(int); ok && v >= 0 {
		cfg.TimerSlackMs = v
	}
	return cfg
}

// TCPConfig is the typed view of the "tcpclient.*" keys a ConfigStore
// carries. ReadBufferSize sizes the scratch buffer a websocket.Conn's
// receive loop reads into per Recv call.
type TCPConfig struct {
	ReadBufferSize int
}

// TCPConfig reads "tcpclient.read_buffer_size" out of the current
// snapshot, falling back to defaults.ReadBufferSize when unset.
func (cs *ConfigStore) TCPConfig(defaults TCPConfig) TCPConfig {
	snap := cs.GetSnapshot()
	cfg := defaults
	if v, ok := snap["tcpclient.read_buffer_size"].(int); ok && v > 0 {
		cfg.ReadBufferSize = v
	}
	return cfg
}

// WebSocketConfig is the typed view of the "websocket.*" keys a
// ConfigStore carries. UTF8Mode is an int cast of utf8mode.Mode (control
// has no dependency on the websocket package, so it is carried untyped
// here and cast back by the caller); MaxFramePayload bounds the
// reassembled message size a Conn accepts before closing with 1009.
type WebSocketConfig struct {
	UTF8Mode        int
	MaxFramePayload int
}

// WebSocketConfig reads "websocket.utf8_mode" and
// "websocket.max_frame_payload" out of the current snapshot, falling
// back to defaults for any key not yet set.
func (cs *ConfigStore) WebSocketConfig(defaults WebSocketConfig) WebSocketConfig {
	snap := cs.GetSnapshot()
	cfg := defaults
	if v, ok := snap["websocket.utf8_mode"].(int); ok {
		cfg.UTF8Mode = v
	}
	if v, ok := snap["websocket.max_frame_payload"].(int); ok && v > 0 {
		cfg.MaxFramePayload = v
	}
	return cfg
}

// dispatchReload invokes all listeners.
func (cs *ConfigStore) dispatchReload() {
	for _, fn := range cs.listeners {
		go fn()
	}
}
