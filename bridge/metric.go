package bridge

import "sync/atomic"

// EngineMetrics contains atomic counters for the bridge engine.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type EngineMetrics struct {
	// ActiveBridges indicates the number of bridges currently relaying.
	ActiveBridges atomic.Int64
	// BridgeCount indicates the number of finished bridge runs.
	BridgeCount atomic.Uint64
	// BytesRelayed indicates total bytes moved in both directions.
	BytesRelayed atomic.Uint64
}
