package xfer

import "sync/atomic"

// EngineMetrics contains atomic counters for the transfer engine.
// Metrics can be used as the value of a prometheus CounterFunc.
type EngineMetrics struct {
	// BlockSendCount indicates the number of blocks sent (ACK'd).
	BlockSendCount atomic.Uint64
	// BlockRecvCount indicates the number of blocks accepted.
	BlockRecvCount atomic.Uint64
	// BlockRetryCount indicates the total number of block retries.
	BlockRetryCount atomic.Uint64

	// TransferCount indicates the number of completed transfers.
	TransferCount atomic.Uint64
	// AbortCount indicates the number of aborted or link-lost transfers.
	AbortCount atomic.Uint64

	// BytesSent indicates payload bytes sent, excluding framing.
	BytesSent atomic.Uint64
	// BytesRecv indicates payload bytes received, excluding padding.
	BytesRecv atomic.Uint64
}

func (m *EngineMetrics) incBlockSendCount()  { m.BlockSendCount.Add(1) }
func (m *EngineMetrics) incBlockRecvCount()  { m.BlockRecvCount.Add(1) }
func (m *EngineMetrics) incBlockRetryCount() { m.BlockRetryCount.Add(1) }

func (m *EngineMetrics) addBytesSent(n int64) { m.BytesSent.Add(uint64(n)) }
func (m *EngineMetrics) addBytesRecv(n int64) { m.BytesRecv.Add(uint64(n)) }

func (m *EngineMetrics) recordResult(r Result) {
	if r.Status == StatusCompleted {
		m.TransferCount.Add(1)
	} else {
		m.AbortCount.Add(1)
	}
}
