package perf

import (
	"fmt"
	"strings"
	"sync"
)

// Counters is a plain copy of the statistics of a run.
type Counters struct {
	PacketsSent        uint64  `json:"packets_sent"`
	DataPacketsSent    uint64  `json:"data_packets_sent"`
	DataPacketsArrived uint64  `json:"data_packets_arrived"`
	RoutingPacketsSent uint64  `json:"routing_packets_sent"`
	DataPacketsDropped uint64  `json:"data_packets_dropped"`
	AvgDelay           float64 `json:"avg_delay"`
	AvgThroughput      float64 `json:"avg_throughput"`
}

// DeliveryRatio is the percentage of data packets that arrived, 0 when none were sent.
func (c Counters) DeliveryRatio() float64 {
	if c.DataPacketsSent == 0 {
		return 0
	}
	return 100 * float64(c.DataPacketsArrived) / float64(c.DataPacketsSent)
}

// RoutingOverhead is the percentage of all packets that carried routing information.
func (c Counters) RoutingOverhead() float64 {
	if c.PacketsSent == 0 {
		return 0
	}
	return 100 * float64(c.RoutingPacketsSent) / float64(c.PacketsSent)
}

// StatisticsHandler aggregates the packet statistics of one simulation run.
// Averages are maintained incrementally, samples are never retained.
type StatisticsHandler struct {
	mu sync.Mutex
	c  Counters
}

func NewStatisticsHandler() *StatisticsHandler {
	return &StatisticsHandler{}
}

// AddPacketArrival records a delivered data packet that took delay to arrive.
// A non-positive delay contributes 0 to the throughput average.
func (h *StatisticsHandler) AddPacketArrival(delay float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := float64(h.c.DataPacketsArrived)
	throughput := 0.0
	if delay > 0 {
		throughput = 1 / delay
	}
	h.c.AvgDelay = (h.c.AvgDelay*n + delay) / (n + 1)
	h.c.AvgThroughput = (h.c.AvgThroughput*n + throughput) / (n + 1)
	h.c.DataPacketsArrived++

	DeliveryDelay.Add(delay)
}

// AddRoutingPackets counts amount routing packets towards both the routing and
// total packet counters.
func (h *StatisticsHandler) AddRoutingPackets(amount uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.c.PacketsSent += amount
	h.c.RoutingPacketsSent += amount
}

// SendDataPacket counts an originated data packet.
func (h *StatisticsHandler) SendDataPacket() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.c.PacketsSent++
	h.c.DataPacketsSent++
}

func (h *StatisticsHandler) DropDataPacket() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.c.DataPacketsDropped++
	DroppedPackets.Add(1)
}

func (h *StatisticsHandler) Snapshot() Counters {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.c
}

// String renders the report. The block after "Actual metrics, in order:" is
// parsed by external tooling, its order and precision must not change.
func (h *StatisticsHandler) String() string {
	c := h.Snapshot()
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Packets sent: %d\n", c.PacketsSent)
	fmt.Fprintf(sb, "Data packets sent: %d\n", c.DataPacketsSent)
	fmt.Fprintf(sb, "Routing packets sent: %d\n", c.RoutingPacketsSent)
	fmt.Fprintf(sb, "Data packets arrived: %d\n", c.DataPacketsArrived)
	fmt.Fprintf(sb, "Data packets delivery ratio: %.2f%%\n", c.DeliveryRatio())
	fmt.Fprintf(sb, "Average end-to-end packet delay: %.2f\n", c.AvgDelay)
	fmt.Fprintf(sb, "Average throughput: %.10f\n\n", c.AvgThroughput)

	sb.WriteString("Actual metrics, in order:\n")
	fmt.Fprintf(sb, "%.2f\n", c.DeliveryRatio())
	fmt.Fprintf(sb, "%.10f\n", c.AvgThroughput)
	fmt.Fprintf(sb, "%.2f\n", c.RoutingOverhead())
	fmt.Fprintf(sb, "%.2f\n", c.AvgDelay)
	return sb.String()
}
