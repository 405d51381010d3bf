package perception

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabelSet is a shared, in-place-updated set of object labels. Every holder of
// the same *LabelSet observes Replace without re-fetching it from the Store.
type LabelSet struct {
	mu     sync.RWMutex
	labels []string
}

func (l *LabelSet) Replace(labels []string) {
	next := make([]string, 0, len(labels))
	for _, label := range labels {
		if label != "" && !slices.Contains(next, label) {
			next = append(next, label)
		}
	}
	l.mu.Lock()
	l.labels = next
	l.mu.Unlock()
}

func (l *LabelSet) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.labels)
}

func (l *LabelSet) Contains(label string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.labels, label)
}

func (l *LabelSet) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.labels)
}

func (l *LabelSet) String() string {
	return strings.Join(l.List(), ", ")
}

type Snapshot struct {
	Labels            []string    `json:"labels"`
	Detections        []Detection `json:"detections"`
	ObstacleNow       bool        `json:"obstacle_now"`
	ObstacleConfirmed bool        `json:"obstacle_confirmed"`
	LabelsAt          time.Time   `json:"labels_at"`
	ObstacleAt        time.Time   `json:"obstacle_at"`
}

// Store holds the latest perception results. Readers copy values out under a
// short lock and never hold it across inference work.
type Store struct {
	labels *LabelSet

	mu                sync.Mutex
	detections        []Detection
	obstacleNow       bool
	obstacleConfirmed bool
	labelsAt          time.Time
	obstacleAt        time.Time
}

func NewStore() *Store {
	return &Store{labels: &LabelSet{}}
}

// Labels returns the store's long-lived label set.
func (s *Store) Labels() *LabelSet {
	return s.labels
}

func (s *Store) UpdateDetections(dets []Detection, at time.Time) {
	s.mu.Lock()
	s.detections = slices.Clone(dets)
	s.labelsAt = at
	s.mu.Unlock()
	s.labels.Replace(Labels(dets))
}

func (s *Store) Detections() []Detection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.detections)
}

func (s *Store) Boxes() []Box {
	s.mu.Lock()
	defer s.mu.Unlock()
	boxes := make([]Box, len(s.detections))
	for i, d := range s.detections {
		boxes[i] = d.Box
	}
	return boxes
}

func (s *Store) SetObstacle(now, confirmed bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obstacleNow = now
	s.obstacleConfirmed = confirmed
	s.obstacleAt = at
}

func (s *Store) Obstacle() (now, confirmed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obstacleNow, s.obstacleConfirmed
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Detections:        slices.Clone(s.detections),
		ObstacleNow:       s.obstacleNow,
		ObstacleConfirmed: s.obstacleConfirmed,
		LabelsAt:          s.labelsAt,
		ObstacleAt:        s.obstacleAt,
	}
	s.mu.Unlock()
	snap.Labels = s.labels.List()
	return snap
}

// Switch is the shared "detection active" flag.
type Switch struct {
	on atomic.Bool
}

func NewSwitch(on bool) *Switch {
	s := &Switch{}
	s.on.Store(on)
	return s
}

func (s *Switch) Set(on bool) (changed bool) {
	return s.on.Swap(on) != on
}

func (s *Switch) On() bool {
	return s.on.Load()
}
