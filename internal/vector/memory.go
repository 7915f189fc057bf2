package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"

	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/pkg/utils"
)

// MemoryIndex is an in-memory vector index using brute-force search.
// Suitable for tests and catalogs of a few thousand entries.
type MemoryIndex struct {
	dimensions int
	metric     Metric
	path       string
	lock       *flock.Flock
	records    []models.IndexRecord
	pos        map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension and metric.
func NewMemoryIndex(dimensions int, metric Metric) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	switch metric {
	case "":
		metric = MetricCosine
	case MetricCosine, MetricDotProduct:
	default:
		return nil, fmt.Errorf("unsupported metric %q for memory index", metric)
	}
	return &MemoryIndex{
		dimensions: dimensions,
		metric:     metric,
		pos:        make(map[string]int),
	}, nil
}

// NewPersistentMemoryIndex creates a memory index backed by a file. Existing contents are
// loaded immediately; Close writes the index back. The file is held under an exclusive
// lock (path + ".lock") until Close, so a second process fails fast instead of
// overwriting the other's index.
func NewPersistentMemoryIndex(dimensions int, metric Metric, path string) (*MemoryIndex, error) {
	m, err := NewMemoryIndex(dimensions, metric)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return m, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock index file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("index file %s is in use by another process", path)
	}
	if err := m.Load(path); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	m.path = path
	m.lock = lock
	return m, nil
}

// EnsureIndex is a no-op; the index exists once constructed.
func (m *MemoryIndex) EnsureIndex(ctx context.Context) error {
	return nil
}

// Upsert inserts or replaces records by id.
func (m *MemoryIndex) Upsert(ctx context.Context, records []models.IndexRecord) error {
	for _, r := range records {
		if len(r.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", r.ID, len(r.Vector), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		rec := models.IndexRecord{
			ID:       r.ID,
			Vector:   append([]float32(nil), r.Vector...),
			Metadata: copyMetadata(r.Metadata),
		}
		if i, ok := m.pos[r.ID]; ok {
			m.records[i] = rec
			continue
		}
		m.pos[r.ID] = len(m.records)
		m.records = append(m.records, rec)
	}
	return nil
}

// Query returns the top-k records by similarity. Ties keep insertion order.
func (m *MemoryIndex) Query(ctx context.Context, query []float32, topK int, includeMetadata bool) (models.QueryResult, error) {
	if len(query) != m.dimensions {
		return models.QueryResult{}, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topK <= 0 || len(m.records) == 0 {
		return models.QueryResult{}, nil
	}
	matches := make([]models.Match, len(m.records))
	for i, r := range m.records {
		matches[i] = models.Match{ID: r.ID, Score: m.score(query, r.Vector)}
		if includeMetadata {
			matches[i].Metadata = copyMetadata(r.Metadata)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > len(matches) {
		topK = len(matches)
	}
	return models.QueryResult{Matches: matches[:topK]}, nil
}

func (m *MemoryIndex) score(a, b []float32) float64 {
	if m.metric == MetricDotProduct {
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return dot
	}
	return utils.Cosine(a, b)
}

// Delete removes records by id. Unknown ids are ignored.
func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, r := range m.records {
		if !removeSet[r.ID] {
			kept = append(kept, r)
		}
	}
	m.records = kept
	m.pos = make(map[string]int, len(kept))
	for i, r := range kept {
		m.pos[r.ID] = i
	}
	return nil
}

// Size returns the number of records in the index.
func (m *MemoryIndex) Size(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Close persists the index when it was opened with a path and releases its lock.
func (m *MemoryIndex) Close() error {
	err := m.Save(m.path)
	if m.lock != nil {
		if uerr := m.lock.Unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("unlock index file: %w", uerr)
		}
		m.lock = nil
	}
	return err
}

// Save persists the index to path. Directory is created if needed. Format: dimension (4), n (4),
// then per record: id, vector (dimension*4 bytes), metadata count (4), then key/value pairs.
// Strings are length-prefixed (4).
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeUint32(w, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := writeUint32(w, uint32(len(m.records))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, r := range m.records {
		if err := writeString(w, r.ID); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(r.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
		keys := make([]string, 0, len(r.Metadata))
		for k := range r.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if err := writeUint32(w, uint32(len(keys))); err != nil {
			return fmt.Errorf("write metadata count: %w", err)
		}
		for _, k := range keys {
			if err := writeString(w, k); err != nil {
				return fmt.Errorf("write metadata key: %w", err)
			}
			if err := writeString(w, r.Metadata[k]); err != nil {
				return fmt.Errorf("write metadata value: %w", err)
			}
		}
	}
	return w.Flush()
}

// Load reads the index from path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	dim, err := readUint32(r)
	if err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	n, err := readUint32(r)
	if err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	records := make([]models.IndexRecord, 0, n)
	pos := make(map[string]int, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		id, err := readString(r)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		metaCount, err := readUint32(r)
		if err != nil {
			return fmt.Errorf("read metadata count: %w", err)
		}
		var meta map[string]string
		if metaCount > 0 {
			meta = make(map[string]string, metaCount)
		}
		for j := uint32(0); j < metaCount; j++ {
			k, err := readString(r)
			if err != nil {
				return fmt.Errorf("read metadata key: %w", err)
			}
			v, err := readString(r)
			if err != nil {
				return fmt.Errorf("read metadata value: %w", err)
			}
			meta[k] = v
		}
		pos[id] = len(records)
		records = append(records, models.IndexRecord{ID: id, Vector: bytesToFloat32Slice(buf), Metadata: meta})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	m.pos = pos
	return nil
}

func writeUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
