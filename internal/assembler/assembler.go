// Package assembler builds corrected, gap-filled data windows from batches
// of decoded sensor packets. Packets are grouped per device recording
// session, each group is run through the time-sync pipeline (exchange
// extraction, latency/offset estimation, aggregation, model fit), the
// fitted model corrects every sensor timestamp, and the corrected streams
// are gap-filled, truncated and padded to the requested range.
package assembler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sensor-window-service/internal/models"
)

// Assembler assembles one DataWindow per call from an in-memory packet
// batch. It performs no network or disk I/O; all work is CPU-bound.
type Assembler struct {
	req models.WindowRequest
}

// New validates the request and returns an assembler. An inverted window
// is the one fatal condition: it is rejected before any processing begins.
func New(req models.WindowRequest) (*Assembler, error) {
	if req.EndUs < req.StartUs {
		return nil, fmt.Errorf("invalid window: end %d before start %d", req.EndUs, req.StartUs)
	}
	if req.PaddingUs < 0 {
		return nil, fmt.Errorf("invalid window: negative padding %d", req.PaddingUs)
	}
	req.Normalize()
	return &Assembler{req: req}, nil
}

// deviceResult is one worker's completed output for a device group.
type deviceResult struct {
	key      string
	segments []models.DeviceSegment
	report   *models.AssemblyReport
}

// Assemble produces a best-effort DataWindow plus a report of everything
// that was recovered from along the way. Device groups are independent, so
// they are processed by a bounded worker pool; the merge of finished
// groups into the shared result is the only synchronized point. Input
// order is irrelevant: packets are re-sorted before grouping, so shuffling
// the batch yields an identical window. Cancelling ctx drops devices that
// have not finished; completed devices are still emitted whole.
func (a *Assembler) Assemble(ctx context.Context, packets []*models.DecodedPacket) (*models.DataWindow, *models.AssemblyReport) {
	report := &models.AssemblyReport{}
	groups := a.groupPackets(packets, report)

	window := &models.DataWindow{
		StartUs:   a.req.StartUs,
		EndUs:     a.req.EndUs,
		PaddingUs: a.req.PaddingUs,
		Devices:   make(map[string][]models.DeviceSegment, len(groups)),
	}
	if len(groups) == 0 {
		return window, report
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	workers := a.req.Workers
	if workers > len(keys) {
		workers = len(keys)
	}

	jobs := make(chan string)
	results := make(chan deviceResult, len(keys))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				// A cancelled request drops the remaining devices whole;
				// nothing half-assembled is ever emitted.
				if ctx.Err() != nil {
					return
				}
				segments, devReport := a.assembleDevice(key, groups[key])
				results <- deviceResult{key: key, segments: segments, report: devReport}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, key := range keys {
			select {
			case jobs <- key:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		report.Merge(res.report)
		if len(res.segments) == 0 {
			report.DevicesFailed++
			continue
		}
		window.Devices[res.key] = res.segments
	}
	return window, report
}

// groupPackets validates, groups by device key and time-sorts the batch.
// Structurally broken packets are skipped and recorded; assembly of the
// remaining packets continues.
func (a *Assembler) groupPackets(packets []*models.DecodedPacket, report *models.AssemblyReport) map[string][]*models.DecodedPacket {
	groups := make(map[string][]*models.DecodedPacket)
	for _, p := range packets {
		if p == nil {
			report.PacketsSkipped++
			continue
		}
		if err := p.Validate(); err != nil {
			report.Add(p.DeviceKey(), models.StagePacket, err.Error())
			report.PacketsSkipped++
			continue
		}
		key := p.DeviceKey()
		groups[key] = append(groups[key], p)
	}
	for _, group := range groups {
		models.SortPacketsByStart(group)
	}
	return groups
}
