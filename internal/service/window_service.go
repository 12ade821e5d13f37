package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"sensor-window-service/internal/assembler"
	"sensor-window-service/internal/cache"
	"sensor-window-service/internal/metrics"
	"sensor-window-service/internal/models"
	"sensor-window-service/internal/repository"
	"sensor-window-service/internal/store"
)

// WindowService ties together packet ingest, window assembly, persistence
// and the window cache. The repository and cache are optional: a nil repo
// skips summary persistence and a nil cache disables caching.
type WindowService struct {
	store *store.PacketStore
	repo  *repository.SQLiteRepository
	cache *cache.WindowCache
}

func NewWindowService(packetStore *store.PacketStore, repo *repository.SQLiteRepository, windowCache *cache.WindowCache) *WindowService {
	return &WindowService{
		store: packetStore,
		repo:  repo,
		cache: windowCache,
	}
}

// Packet ingest

func (s *WindowService) StorePacket(p *models.DecodedPacket) error {
	if err := s.store.Add(p); err != nil {
		metrics.PacketsRejected.Inc()
		return err
	}
	metrics.PacketsIngested.Inc()
	return nil
}

// StorePacketBatch stores every valid packet in the batch and returns how
// many were accepted alongside the first validation error, if any.
func (s *WindowService) StorePacketBatch(packets []*models.DecodedPacket) (int, error) {
	stored, err := s.store.AddBatch(packets)
	metrics.PacketsIngested.Add(float64(stored))
	if rejected := len(packets) - stored; rejected > 0 {
		metrics.PacketsRejected.Add(float64(rejected))
	}
	return stored, err
}

func (s *WindowService) PacketStats() []store.DeviceStats {
	return s.store.Stats()
}

// StoredCount returns how many packets one device session has stored.
func (s *WindowService) StoredCount(deviceKey string) int {
	return s.store.CountByDevice(deviceKey)
}

// CacheStatus reports the window cache state for health checks.
func (s *WindowService) CacheStatus() string {
	if s.cache == nil {
		return "disabled"
	}
	if err := s.cache.Ping(); err != nil {
		return "down"
	}
	return "ok"
}

func (s *WindowService) ClearPackets() {
	s.store.Clear()
}

// Window assembly

// AssembleWindow builds a data window over the currently stored packets.
// Identical requests over an unchanged store are served from the cache.
func (s *WindowService) AssembleWindow(ctx context.Context, req models.WindowRequest) (*models.DataWindow, *models.AssemblyReport, error) {
	asm, err := assembler.New(req)
	if err != nil {
		return nil, nil, err
	}

	packets := s.store.Snapshot()

	key := cache.RequestKey(&req, len(packets), s.store.Generation())
	if s.cache != nil {
		cached, hit, err := s.cache.GetWindow(key)
		if err != nil {
			log.Printf("Window cache lookup failed: %v", err)
		} else if hit {
			metrics.CacheHits.Inc()
			return cached.Window, cached.Report, nil
		}
		metrics.CacheMisses.Inc()
	}

	started := time.Now()
	window, report := asm.Assemble(ctx, packets)
	metrics.AssemblyDuration.Observe(time.Since(started).Seconds())

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("window assembly cancelled: %w", err)
	}

	window.WindowID = uuid.New().String()
	window.CreatedAtMs = time.Now().UnixMilli()

	metrics.WindowsAssembled.Inc()
	metrics.DevicesFailed.Add(float64(report.DevicesFailed))
	metrics.GapsFilled.Add(float64(report.GapsFilled))

	log.Printf("Assembled window %s: %d devices, %d segments, %d errors",
		window.WindowID, len(window.Devices), window.SegmentCount(), len(report.Errors))

	if s.repo != nil {
		if err := s.repo.SaveWindow(window, report); err != nil {
			// Persistence is best effort; the assembled window is still valid.
			log.Printf("Failed to save window summary: %v", err)
		}
	}

	if s.cache != nil {
		if err := s.cache.CacheWindow(key, window, report); err != nil {
			log.Printf("Failed to cache window: %v", err)
		}
	}

	return window, report, nil
}

// Window history

func (s *WindowService) GetWindowSummary(windowID string) (*models.WindowSummary, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("window history is not enabled")
	}
	return s.repo.GetWindowSummary(windowID)
}

func (s *WindowService) GetWindowSummaries(limit, offset int) ([]*models.WindowSummary, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("window history is not enabled")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.repo.GetWindowSummaries(limit, offset)
}

func (s *WindowService) GetWindowSummariesByTimeRange(startTime, endTime time.Time, limit, offset int) ([]*models.WindowSummary, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("window history is not enabled")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.repo.GetWindowSummariesByTimeRange(startTime, endTime, limit, offset)
}

func (s *WindowService) GetSegmentSummaries(windowID string) ([]*models.SegmentSummary, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("window history is not enabled")
	}
	return s.repo.GetSegmentSummaries(windowID)
}

func (s *WindowService) GetSegmentSummariesByDevice(deviceID string, limit, offset int) ([]*models.SegmentSummary, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("window history is not enabled")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.repo.GetSegmentSummariesByDevice(deviceID, limit, offset)
}
