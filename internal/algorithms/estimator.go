package algorithms

import (
	"sensor-window-service/internal/models"
)

// EstimateExchange computes the latency/offset estimate for one exchange
// using the four-timestamp closed form: with (d0, d1, d2, d3) as device
// send, server receive, server send, device receive,
//
//	latency = ((d3 - d0) - (d2 - d1)) / 2
//	offset  = ((d1 - d0) + (d2 - d3)) / 2
//
// Offset is signed with the convention corrected = device + offset.
func EstimateExchange(e *models.Exchange) (latencyUs, offsetUs float64) {
	latencyUs = ((e.DeviceRecv - e.DeviceSend) - (e.ServerSend - e.ServerRecv)) / 2
	offsetUs = ((e.ServerRecv - e.DeviceSend) + (e.ServerSend - e.DeviceRecv)) / 2
	return latencyUs, offsetUs
}

// BestSample reduces one packet's exchanges to at most one TimeSyncSample.
// Exchanges yielding negative latency are physically impossible (a clock
// anomaly) and are discarded. Among the remainder the exchange with minimum
// latency wins: the tightest round trip gives the tightest offset bound,
// the same selection rule NTP uses. A packet with no usable exchange
// contributes nothing, which is not an error.
func BestSample(exchanges []models.Exchange, packetStartUs float64) (models.TimeSyncSample, bool) {
	best := models.TimeSyncSample{PacketStartUs: packetStartUs}
	found := false

	for i := range exchanges {
		latency, offset := EstimateExchange(&exchanges[i])
		if latency < 0 {
			continue
		}
		if !found || latency < best.LatencyUs {
			best.LatencyUs = latency
			best.OffsetUs = offset
			best.ExchangeIndex = i
			found = true
		}
	}
	return best, found
}
