package vector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/exilemind/buildsearch/internal/models"
	"github.com/exilemind/buildsearch/internal/storage"
)

const (
	versionPrefix = "versions"
	backupPrefix  = "backups"
	latestKey     = "versions/latest"

	indexFileName = "index.bin"
	metaFileName  = "meta.json"

	defaultRebuildThreshold = 0.3
	maxOptimizedProbes      = 32
	memoryOverheadFactor    = 1.2
)

// Options configures an Index. Zero values fall back to workable defaults.
type Options struct {
	Metric           Metric
	Clusters         int
	NProbe           int
	RebuildThreshold float64
	Rotate           bool
}

// Match pairs a metadata entry with its raw vector similarity.
type Match struct {
	Metadata   *models.BuildMetadata
	Similarity float64
}

// Stats describes the current state of an index.
type Stats struct {
	Built            bool      `json:"built"`
	Type             IndexType `json:"type,omitempty"`
	Metric           Metric    `json:"metric"`
	Size             int       `json:"size"`
	Dimensions       int       `json:"dimensions"`
	AddedSinceBuild  int       `json:"added_since_build"`
	EstimatedMemory  int64     `json:"estimated_memory_bytes"`
	RebuildThreshold float64   `json:"rebuild_threshold"`
}

// indexMeta is the sidecar persisted next to the binary index payload.
type indexMeta struct {
	Type       IndexType               `json:"type"`
	Metric     Metric                  `json:"metric"`
	Dimensions int                     `json:"dimensions"`
	Size       int                     `json:"size"`
	CreatedAt  time.Time               `json:"created_at"`
	Entries    []*models.BuildMetadata `json:"entries"`
}

// Index is the size-adaptive vector index. It picks a backend strategy from
// corpus size at build time, keeps metadata entries aligned with backend
// slots, and persists versioned snapshots through a blob store.
type Index struct {
	mu     sync.RWMutex
	opts   Options
	blobs  storage.BlobStore
	logger *zap.Logger

	backend    Backend
	entries    []*models.BuildMetadata
	addedSince int
}

// NewIndex creates an empty, unbuilt index. Search and Add fail with
// ErrNotBuilt until Build or Load succeeds.
func NewIndex(opts Options, blobs storage.BlobStore, logger *zap.Logger) *Index {
	if opts.Metric == "" {
		opts.Metric = MetricCosine
	}
	if opts.RebuildThreshold <= 0 {
		opts.RebuildThreshold = defaultRebuildThreshold
	}
	if opts.Clusters <= 0 {
		opts.Clusters = 100
	}
	if opts.NProbe <= 0 {
		opts.NProbe = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{opts: opts, blobs: blobs, logger: logger}
}

// Build replaces the index contents with the given corpus, choosing the
// backend strategy from its size. Vectors and entries are parallel slices.
func (ix *Index) Build(vectors [][]float32, entries []*models.BuildMetadata) error {
	if len(vectors) == 0 {
		return fmt.Errorf("cannot build an index from an empty corpus")
	}
	if len(vectors) != len(entries) {
		return fmt.Errorf("vectors and entries length mismatch: %d vs %d", len(vectors), len(entries))
	}
	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: corpus mixes widths %d and %d", ErrDimensionMismatch, dim, len(v))
		}
	}

	backend, err := ix.newBackend(ChooseIndexType(len(vectors)), dim, len(vectors))
	if err != nil {
		return err
	}
	if backend.RequiresTraining() {
		if err := backend.Train(vectors); err != nil {
			return fmt.Errorf("train index: %w", err)
		}
	}
	if err := backend.Add(vectors); err != nil {
		return fmt.Errorf("populate index: %w", err)
	}

	ix.mu.Lock()
	ix.backend = backend
	ix.entries = append([]*models.BuildMetadata(nil), entries...)
	ix.addedSince = 0
	ix.mu.Unlock()

	ix.logger.Info("index built",
		zap.String("type", string(backend.Type())),
		zap.Int("size", len(vectors)),
		zap.Int("dimensions", dim))
	return nil
}

func (ix *Index) newBackend(t IndexType, dim, corpus int) (Backend, error) {
	switch t {
	case IndexTypeFlat:
		return NewFlatBackend(dim, ix.opts.Metric), nil
	case IndexTypeIVF:
		return NewIVFBackend(dim, ix.clusterCount(corpus), ix.opts.NProbe, ix.opts.Metric), nil
	case IndexTypeIVFPQ:
		return NewIVFPQBackend(dim, ix.clusterCount(corpus), ix.opts.NProbe, ix.opts.Metric, ix.opts.Rotate), nil
	default:
		return nil, fmt.Errorf("unknown index type: %q", t)
	}
}

// clusterCount caps the configured cluster count so every cluster can expect
// at least ten members.
func (ix *Index) clusterCount(corpus int) int {
	n := ix.opts.Clusters
	if byCorpus := corpus / 10; byCorpus < n {
		n = byCorpus
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Add appends new vectors incrementally. When the new vectors would make up
// more than the rebuild threshold of the resulting corpus, Add refuses with
// ErrNeedsRebuild and leaves the index untouched.
func (ix *Index) Add(vectors [][]float32, entries []*models.BuildMetadata) error {
	if len(vectors) != len(entries) {
		return fmt.Errorf("vectors and entries length mismatch: %d vs %d", len(vectors), len(entries))
	}
	if len(vectors) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.backend == nil {
		return ErrNotBuilt
	}
	dim := ix.backend.Dimensions()
	for _, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(v), dim)
		}
	}

	current := ix.backend.Size()
	fraction := float64(len(vectors)) / float64(current+len(vectors))
	if fraction > ix.opts.RebuildThreshold {
		ix.logger.Info("incremental add refused",
			zap.Int("current", current),
			zap.Int("incoming", len(vectors)),
			zap.Float64("fraction", fraction),
			zap.Float64("threshold", ix.opts.RebuildThreshold))
		return ErrNeedsRebuild
	}

	if err := ix.backend.Add(vectors); err != nil {
		return err
	}
	ix.entries = append(ix.entries, entries...)
	ix.addedSince += len(vectors)
	return nil
}

// Search returns the k nearest entries to the query vector, most similar first.
func (ix *Index) Search(query []float32, k int) ([]Match, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.backend == nil {
		return nil, ErrNotBuilt
	}
	if k <= 0 {
		return nil, nil
	}
	if len(query) != ix.backend.Dimensions() {
		return nil, fmt.Errorf("%w: query has %d, index has %d",
			ErrDimensionMismatch, len(query), ix.backend.Dimensions())
	}
	hits, err := ix.backend.Search(query, k)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, Match{Metadata: ix.entries[h.Slot], Similarity: h.Similarity})
	}
	return matches, nil
}

// Size returns the number of indexed vectors, zero when unbuilt.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.backend == nil {
		return 0
	}
	return ix.backend.Size()
}

// Stats reports the current index state.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	s := Stats{
		Metric:           ix.opts.Metric,
		RebuildThreshold: ix.opts.RebuildThreshold,
	}
	if ix.backend == nil {
		return s
	}
	s.Built = true
	s.Type = ix.backend.Type()
	s.Size = ix.backend.Size()
	s.Dimensions = ix.backend.Dimensions()
	s.AddedSinceBuild = ix.addedSince
	s.EstimatedMemory = estimateMemory(s.Size, s.Dimensions)
	return s
}

// estimateMemory approximates resident bytes for n float32 vectors of width d
// plus bookkeeping overhead.
func estimateMemory(n, d int) int64 {
	return int64(float64(n) * float64(d) * 4 * memoryOverheadFactor)
}

// Save persists a versioned snapshot and atomically repoints the latest alias.
// An empty version gets a generated timestamped name.
func (ix *Index) Save(version string) (string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.backend == nil {
		return "", ErrNotBuilt
	}
	if version == "" {
		version = time.Now().UTC().Format("20060102-150405")
	}
	if strings.ContainsAny(version, "/\\") {
		return "", fmt.Errorf("invalid version name: %q", version)
	}

	var buf bytes.Buffer
	if err := ix.backend.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("serialize index: %w", err)
	}
	meta := indexMeta{
		Type:       ix.backend.Type(),
		Metric:     ix.opts.Metric,
		Dimensions: ix.backend.Dimensions(),
		Size:       ix.backend.Size(),
		CreatedAt:  time.Now().UTC(),
		Entries:    ix.entries,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal index metadata: %w", err)
	}

	base := versionPrefix + "/" + version
	if err := ix.blobs.Write(base+"/"+indexFileName, buf.Bytes()); err != nil {
		return "", fmt.Errorf("write index payload: %w", err)
	}
	if err := ix.blobs.Write(base+"/"+metaFileName, metaBytes); err != nil {
		return "", fmt.Errorf("write index metadata: %w", err)
	}
	// The alias write is last so a crash mid-save never leaves latest
	// pointing at a partial version.
	if err := ix.blobs.Write(latestKey, []byte(version)); err != nil {
		return "", fmt.Errorf("update latest alias: %w", err)
	}

	ix.logger.Info("index saved", zap.String("version", version), zap.Int("size", meta.Size))
	return version, nil
}

// Load replaces the index contents with a persisted snapshot. An empty version
// resolves through the latest alias.
func (ix *Index) Load(version string) error {
	if version == "" {
		data, err := ix.blobs.Read(latestKey)
		if err != nil {
			return fmt.Errorf("resolve latest version: %w", err)
		}
		version = strings.TrimSpace(string(data))
	}
	base := versionPrefix + "/" + version

	metaBytes, err := ix.blobs.Read(base + "/" + metaFileName)
	if err != nil {
		return fmt.Errorf("read index metadata: %w", err)
	}
	var meta indexMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("parse index metadata: %w", err)
	}
	if meta.Size != len(meta.Entries) {
		return fmt.Errorf("corrupt snapshot %q: %d vectors but %d entries", version, meta.Size, len(meta.Entries))
	}

	payload, err := ix.blobs.Read(base + "/" + indexFileName)
	if err != nil {
		return fmt.Errorf("read index payload: %w", err)
	}
	backend, err := ix.newBackend(meta.Type, meta.Dimensions, meta.Size)
	if err != nil {
		return err
	}
	if err := backend.ReadFrom(bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("deserialize index: %w", err)
	}

	ix.mu.Lock()
	ix.backend = backend
	ix.entries = meta.Entries
	ix.addedSince = 0
	ix.mu.Unlock()

	ix.logger.Info("index loaded",
		zap.String("version", version),
		zap.String("type", string(meta.Type)),
		zap.Int("size", meta.Size))
	return nil
}

// OptimizeReport summarizes what Optimize changed.
type OptimizeReport struct {
	Type            IndexType `json:"type"`
	Size            int       `json:"size"`
	NProbeBefore    int       `json:"nprobe_before,omitempty"`
	NProbeAfter     int       `json:"nprobe_after,omitempty"`
	EstimatedMemory int64     `json:"estimated_memory_bytes"`
}

// Optimize retunes search parameters for the current corpus size. For
// clustered backends this scales nprobe with the corpus; the flat backend has
// nothing to tune and only gets the memory report.
func (ix *Index) Optimize() (*OptimizeReport, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.backend == nil {
		return nil, ErrNotBuilt
	}
	report := &OptimizeReport{
		Type:            ix.backend.Type(),
		Size:            ix.backend.Size(),
		EstimatedMemory: estimateMemory(ix.backend.Size(), ix.backend.Dimensions()),
	}
	if tunable, ok := ix.backend.(probeTunable); ok {
		report.NProbeBefore = tunable.NProbe()
		target := ix.backend.Size() / 1000
		if target < 1 {
			target = 1
		}
		if target > maxOptimizedProbes {
			target = maxOptimizedProbes
		}
		tunable.SetNProbe(target)
		report.NProbeAfter = tunable.NProbe()
		ix.logger.Info("index optimized",
			zap.Int("nprobe_before", report.NProbeBefore),
			zap.Int("nprobe_after", report.NProbeAfter))
	}
	return report, nil
}

// Backup copies the latest persisted snapshot into a timestamped backup
// directory and returns the backup name. Save must have run at least once.
func (ix *Index) Backup() (string, error) {
	data, err := ix.blobs.Read(latestKey)
	if err != nil {
		return "", fmt.Errorf("no saved version to back up: %w", err)
	}
	version := strings.TrimSpace(string(data))
	base := versionPrefix + "/" + version

	name := fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.New().String()[:8])
	dst := backupPrefix + "/" + name

	keys, err := ix.blobs.List(base)
	if err != nil {
		return "", fmt.Errorf("list snapshot %q: %w", version, err)
	}
	sort.Strings(keys)
	for _, key := range keys {
		payload, err := ix.blobs.Read(key)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", key, err)
		}
		rel := strings.TrimPrefix(key, base+"/")
		if err := ix.blobs.Write(dst+"/"+rel, payload); err != nil {
			return "", fmt.Errorf("write backup %s: %w", rel, err)
		}
	}

	ix.logger.Info("index backed up", zap.String("backup", name), zap.String("version", version))
	return name, nil
}
