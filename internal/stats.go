package internal

import "sync/atomic"

// StreamStats counts live-channel activity for the status footer.
type StreamStats struct {
	frames      atomic.Uint64
	bytes       atomic.Uint64
	duplicates  atomic.Uint64
	rateLimited atomic.Uint64
	connects    atomic.Uint64
	disconnects atomic.Uint64
}

// StatsSnapshot is a point-in-time copy safe to render.
type StatsSnapshot struct {
	Frames      uint64
	Bytes       uint64
	Duplicates  uint64
	RateLimited uint64
	Connects    uint64
	Disconnects uint64
}

func NewStreamStats() *StreamStats {
	return &StreamStats{}
}

func (s *StreamStats) AddFrame(size int) {
	s.frames.Add(1)
	s.bytes.Add(uint64(size))
}

func (s *StreamStats) IncDuplicates() {
	s.duplicates.Add(1)
}

func (s *StreamStats) IncRateLimited() {
	s.rateLimited.Add(1)
}

func (s *StreamStats) IncConnects() {
	s.connects.Add(1)
}

func (s *StreamStats) IncDisconnects() {
	s.disconnects.Add(1)
}

func (s *StreamStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Frames:      s.frames.Load(),
		Bytes:       s.bytes.Load(),
		Duplicates:  s.duplicates.Load(),
		RateLimited: s.rateLimited.Load(),
		Connects:    s.connects.Load(),
		Disconnects: s.disconnects.Load(),
	}
}
