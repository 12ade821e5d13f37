// Package store holds decoded packets between ingestion and assembly.
// The codec and network collaborators deliver packets here; the window
// service reads a snapshot of the batch when a window is requested.
package store

import (
	"fmt"
	"sync"

	"sensor-window-service/internal/models"
)

// DeviceStats summarizes the stored packets of one device recording session.
type DeviceStats struct {
	DeviceKey    string  `json:"device_key"`
	DeviceID     string  `json:"device_id"`
	PacketCount  int     `json:"packet_count"`
	FirstStartUs float64 `json:"first_start_us"`
	LastStartUs  float64 `json:"last_start_us"`
}

// PacketStore is an in-memory, mutex-guarded packet batch keyed by device.
// Every mutation advances a generation counter so callers caching derived
// results can tell one batch from another.
type PacketStore struct {
	mu      sync.RWMutex
	packets map[string][]*models.DecodedPacket
	count   int
	gen     uint64
}

func NewPacketStore() *PacketStore {
	return &PacketStore{
		packets: make(map[string][]*models.DecodedPacket),
	}
}

// Add validates and stores one packet. Structural errors are returned to
// the caller (the feed reports them to the device); nothing is stored.
func (s *PacketStore) Add(p *models.DecodedPacket) error {
	if p == nil {
		return fmt.Errorf("nil packet")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := p.DeviceKey()
	s.packets[key] = append(s.packets[key], p)
	s.count++
	s.gen++
	return nil
}

// AddBatch stores every valid packet of a batch and returns how many were
// stored along with the first validation error encountered, if any.
func (s *PacketStore) AddBatch(packets []*models.DecodedPacket) (int, error) {
	stored := 0
	var firstErr error
	for _, p := range packets {
		if err := s.Add(p); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		stored++
	}
	return stored, firstErr
}

// Snapshot returns all stored packets as a flat batch. The slice is fresh
// but the packets themselves are shared; assembly treats them read-only.
func (s *PacketStore) Snapshot() []*models.DecodedPacket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := make([]*models.DecodedPacket, 0, s.count)
	for _, group := range s.packets {
		batch = append(batch, group...)
	}
	return batch
}

// CountByDevice returns the number of packets stored for one device key.
func (s *PacketStore) CountByDevice(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.packets[key])
}

// Stats returns per-device packet counts and time bounds.
func (s *PacketStore) Stats() []DeviceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]DeviceStats, 0, len(s.packets))
	for key, group := range s.packets {
		if len(group) == 0 {
			continue
		}
		ds := DeviceStats{
			DeviceKey:    key,
			DeviceID:     group[0].DeviceID,
			PacketCount:  len(group),
			FirstStartUs: group[0].PacketStartUs,
			LastStartUs:  group[0].PacketStartUs,
		}
		for _, p := range group[1:] {
			if p.PacketStartUs < ds.FirstStartUs {
				ds.FirstStartUs = p.PacketStartUs
			}
			if p.PacketStartUs > ds.LastStartUs {
				ds.LastStartUs = p.PacketStartUs
			}
		}
		stats = append(stats, ds)
	}
	return stats
}

// Generation returns the store's mutation counter. Two equal generations
// mean the stored batch has not changed in between.
func (s *PacketStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Clear drops every stored packet.
func (s *PacketStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = make(map[string][]*models.DecodedPacket)
	s.count = 0
	s.gen++
}
