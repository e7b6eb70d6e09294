// Package control is wsloop's ambient configuration/telemetry layer: a
// dynamic ConfigStore, a DebugProbes registry, and a MetricsRegistry,
// wired into executor.Executor (queue depth, pollable count, platform
// probes) and httpclient.Do (per-request counters, verbose dump). Grounded
// on the teacher's control/config.go, control/debug.go, control/metrics.go
// and control/hotreload.go, whose generic key/value core is kept since
// those primitives are domain-agnostic rather than NUMA/DPDK-specific;
// ConfigStore adds typed ExecutorConfig/TCPConfig/WebSocketConfig views
// on top of it.
package control
