package perception

import (
	"sync"
	"time"
)

// FrameStore holds the single most recent camera frame. Writers overwrite the
// slot unconditionally; readers get a point-in-time copy of the header.
type FrameStore struct {
	mu       sync.Mutex
	frame    *Frame
	seq      uint64
	replaced uint64
}

func NewFrameStore() *FrameStore {
	return &FrameStore{}
}

func (s *FrameStore) Put(frame *Frame) {
	if frame == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.frame != nil {
		s.replaced++
	}
	stored := *frame
	stored.Seq = s.seq
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	s.frame = &stored
}

// Get returns the current frame or nil if no frame has ever arrived.
func (s *FrameStore) Get() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil
	}
	snapshot := *s.frame
	return &snapshot
}

type FrameStats struct {
	Seq      uint64        `json:"seq"`
	Replaced uint64        `json:"replaced"`
	Age      time.Duration `json:"age"`
	HasFrame bool          `json:"has_frame"`
}

func (s *FrameStore) Stats(now time.Time) FrameStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := FrameStats{Seq: s.seq, Replaced: s.replaced}
	if s.frame != nil {
		stats.HasFrame = true
		stats.Age = now.Sub(s.frame.Timestamp)
	}
	return stats
}
