package faces

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/eleven-am/sightline/internal/perception"
	"github.com/eleven-am/sightline/internal/shared"
	"gonum.org/v1/gonum/floats"
)

const DefaultThreshold = 0.9

// Face is one detected face and its embedding.
type Face struct {
	Box       perception.Box
	Embedding []float64
}

type Embedder interface {
	Embed(ctx context.Context, frame *perception.Frame) ([]Face, error)
}

type Entry struct {
	Name      string    `json:"name"`
	Embedding []float64 `json:"embedding"`
}

// Gallery is an in-memory set of known face embeddings. Identify accepts the
// nearest entry when its Euclidean distance is under the threshold.
type Gallery struct {
	mu        sync.RWMutex
	entries   []Entry
	dim       int
	threshold float64
}

func NewGallery(threshold float64) *Gallery {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gallery{threshold: threshold}
}

func (g *Gallery) Enroll(name string, embedding []float64) error {
	if name == "" || len(embedding) == 0 {
		return fmt.Errorf("enroll needs a name and an embedding: %w", shared.ErrInvalidConfig)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.dim != 0 && len(embedding) != g.dim {
		return fmt.Errorf("embedding for %q has %d values, gallery uses %d: %w",
			name, len(embedding), g.dim, shared.ErrInvalidConfig)
	}
	g.dim = len(embedding)
	g.entries = append(g.entries, Entry{Name: name, Embedding: append([]float64(nil), embedding...)})
	return nil
}

func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

func (g *Gallery) Identify(embedding []float64) perception.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	best := -1
	bestDist := g.threshold
	for i, e := range g.entries {
		if len(e.Embedding) != len(embedding) {
			continue
		}
		if d := floats.Distance(e.Embedding, embedding, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return perception.Identity{}
	}
	return perception.Identity{Name: g.entries[best].Name, Known: true, Score: bestDist}
}

// LoadFile enrolls every entry of a JSON array of {name, embedding} objects.
func (g *Gallery) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read gallery: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode gallery %s: %w", path, err)
	}
	for _, e := range entries {
		if err := g.Enroll(e.Name, e.Embedding); err != nil {
			return err
		}
	}
	return nil
}

// Matcher resolves faces in a frame against a Gallery.
type Matcher struct {
	embedder Embedder
	gallery  *Gallery
	log      *slog.Logger
}

func NewMatcher(embedder Embedder, gallery *Gallery, log *slog.Logger) *Matcher {
	if log == nil {
		log = slog.Default()
	}
	return &Matcher{embedder: embedder, gallery: gallery, log: log.With("component", "faces")}
}

func (m *Matcher) Match(ctx context.Context, frame *perception.Frame) ([]perception.Identity, error) {
	found, err := m.embedder.Embed(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("embed faces: %w", err)
	}

	ids := make([]perception.Identity, 0, len(found))
	for _, f := range found {
		ids = append(ids, m.gallery.Identify(f.Embedding))
	}
	m.log.Debug("faces matched", "frame_seq", frame.Seq, "faces", len(found))
	return ids, nil
}
