package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vitalsense/mlserve/internal/model"
	"github.com/vitalsense/mlserve/internal/predictor"
	"github.com/vitalsense/mlserve/internal/xfs"
)

const (
	metadataSuffix    = "_metadata.json"
	backupStampLayout = "20060102_150405"
)

// SaveOptions carries the optional inputs to Save.
type SaveOptions struct {
	// TrainingData, when present, is hashed into the metadata for
	// reproducibility tracking. Never verified against anything.
	TrainingData []byte

	// Parameters are hyperparameters stored for audit only.
	Parameters map[string]any

	// TypeHint overrides capability-based model type detection.
	TypeHint model.ModelType
}

// ModelInfo is a registry entry paired with its model ID, as returned by List.
type ModelInfo struct {
	ModelID string `json:"model_id"`
	model.Entry
}

// ModelDetail is the full picture of one stored model version.
type ModelDetail struct {
	ModelID   string          `json:"model_id"`
	ModelName string          `json:"model_name"`
	Entry     model.Entry     `json:"registry_info"`
	Metadata  *model.Metadata `json:"metadata,omitempty"`
}

// Manager owns the registry store and the on-disk artifact layout. It is the
// only component that touches durable storage. Registry mutations are
// serialized with an internal mutex; cross-process safety is limited to the
// store's revision check (single writer process is a documented constraint).
type Manager struct {
	baseDir   string
	backupDir string
	store     *Store

	mu sync.Mutex
}

// NewManager creates the manager and its on-disk layout.
func NewManager(baseDir, backupDir string) (*Manager, error) {
	baseDir = xfs.ExpandTilde(baseDir)
	backupDir = xfs.ExpandTilde(backupDir)

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models directory %s: %w", baseDir, err)
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory %s: %w", backupDir, err)
	}

	m := &Manager{
		baseDir:   baseDir,
		backupDir: backupDir,
		store:     NewStore(baseDir),
	}

	slog.Info("Model persistence initialized", "base_dir", baseDir, "backup_dir", backupDir)
	return m, nil
}

// Ping reports whether the persistence layer is reachable.
func (m *Manager) Ping() error {
	return m.store.Ping()
}

// Save serializes a model with metadata and versioning and returns its new
// model ID. The registry never references an artifact that was not written;
// an orphaned artifact after a failed registry write is accepted collateral.
func (m *Manager) Save(ctx context.Context, mdl any, name, version string, metrics map[string]float64, opts *SaveOptions) (string, error) {
	if opts == nil {
		opts = &SaveOptions{}
	}
	if name == "" {
		return "", fmt.Errorf("%w: model name is empty", model.ErrValidation)
	}

	typ := opts.TypeHint
	if typ == "" {
		typ = predictor.DetectType(mdl)
	}
	if !typ.Valid() {
		return "", fmt.Errorf("%w: unknown model type %q", model.ErrValidation, typ)
	}

	now := time.Now()
	modelID := model.NewModelID(name, version, now)
	modelDir := filepath.Join(m.baseDir, modelID)
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	artifactPath := filepath.Join(modelDir, modelID+predictor.Ext(typ))
	f, err := os.Create(artifactPath)
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}
	if err := predictor.Encode(f, typ, mdl); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close artifact file: %w", err)
	}

	info, err := os.Stat(artifactPath)
	if err != nil {
		return "", fmt.Errorf("stat artifact file: %w", err)
	}

	dataHash := ""
	if len(opts.TrainingData) > 0 {
		sum := sha256.Sum256(opts.TrainingData)
		dataHash = hex.EncodeToString(sum[:])
	}

	gpuCompatible := false
	if target, ok := mdl.(predictor.AcceleratorTarget); ok {
		gpuCompatible = target.GPUCompatible()
	}

	if metrics == nil {
		metrics = map[string]float64{}
	}

	meta := model.Metadata{
		ModelID:            modelID,
		ModelName:          name,
		ModelType:          typ,
		Version:            version,
		TrainingDate:       model.NewTrainingDate(now),
		PerformanceMetrics: metrics,
		Parameters:         opts.Parameters,
		DataHash:           dataHash,
		FilePath:           artifactPath,
		FileSize:           info.Size(),
		GPUCompatible:      gpuCompatible,
		FrameworkVersion:   runtime.Version(),
		Dependencies:       map[string]string{"go": runtime.Version()},
	}

	metadataPath := filepath.Join(modelDir, modelID+metadataSuffix)
	if err := writeMetadata(metadataPath, &meta); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.store.Read()
	doc.Set(name, modelID, model.Entry{
		Version:            version,
		TrainingDate:       meta.TrainingDate,
		PerformanceMetrics: metrics,
		FilePath:           artifactPath,
		MetadataPath:       metadataPath,
		Active:             true,
	})
	if err := m.store.Write(ctx, doc); err != nil {
		return "", err
	}

	slog.Info("Model saved", "model_id", modelID, "model_type", typ, "file_size", info.Size())
	return modelID, nil
}

// Load deserializes a model by its ID along with its metadata.
func (m *Manager) Load(ctx context.Context, modelID string) (any, *model.Metadata, error) {
	doc := m.store.Read()
	_, entry, ok := doc.Lookup(modelID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", model.ErrNotFound, modelID)
	}
	return loadEntry(ctx, modelID, entry)
}

// LoadLatest deserializes the latest active version of a model name, by
// maximum training date. Ties are broken by model ID descending so
// resolution is deterministic.
func (m *Manager) LoadLatest(ctx context.Context, name string) (any, *model.Metadata, error) {
	doc := m.store.Read()

	latestID := ""
	var latest model.Entry
	for id, entry := range doc.Models[name] {
		if !entry.Active {
			continue
		}
		if latestID == "" ||
			entry.TrainingDate > latest.TrainingDate ||
			(entry.TrainingDate == latest.TrainingDate && id > latestID) {
			latestID, latest = id, entry
		}
	}
	if latestID == "" {
		return nil, nil, fmt.Errorf("%w: no active versions of %q", model.ErrNotFound, name)
	}
	return loadEntry(ctx, latestID, latest)
}

func loadEntry(_ context.Context, modelID string, entry model.Entry) (any, *model.Metadata, error) {
	raw, err := os.ReadFile(entry.MetadataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: metadata document for %s", model.ErrMissingArtifact, modelID)
	}
	var meta model.Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, fmt.Errorf("%w: decode metadata for %s: %v", model.ErrSerialization, modelID, err)
	}

	f, err := os.Open(entry.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: artifact file for %s", model.ErrMissingArtifact, modelID)
	}
	defer f.Close()

	mdl, err := predictor.Decode(f, meta.ModelType)
	if err != nil {
		return nil, nil, err
	}

	slog.Debug("Model loaded", "model_id", modelID, "model_type", meta.ModelType)
	return mdl, &meta, nil
}

// List returns registry entries grouped by model name. With a name it
// returns only that name's entries; an unknown name yields an empty slice,
// never an error. Entries are sorted newest first.
func (m *Manager) List(name string) map[string][]ModelInfo {
	doc := m.store.Read()
	out := make(map[string][]ModelInfo)

	if name != "" {
		out[name] = sortedInfos(doc.Models[name])
		return out
	}
	for n, entries := range doc.Models {
		out[n] = sortedInfos(entries)
	}
	return out
}

func sortedInfos(entries map[string]model.Entry) []ModelInfo {
	infos := make([]ModelInfo, 0, len(entries))
	for id, e := range entries {
		infos = append(infos, ModelInfo{ModelID: id, Entry: e})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].TrainingDate != infos[j].TrainingDate {
			return infos[i].TrainingDate > infos[j].TrainingDate
		}
		return infos[i].ModelID > infos[j].ModelID
	})
	return infos
}

// Info returns the registry entry and metadata document for a model ID.
func (m *Manager) Info(modelID string) (*ModelDetail, error) {
	doc := m.store.Read()
	name, entry, ok := doc.Lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, modelID)
	}

	detail := &ModelDetail{ModelID: modelID, ModelName: name, Entry: entry}
	if raw, err := os.ReadFile(entry.MetadataPath); err == nil {
		var meta model.Metadata
		if err := json.Unmarshal(raw, &meta); err == nil {
			detail.Metadata = &meta
		}
	}
	return detail, nil
}

// Delete removes a model's files and registry entry, backing it up first
// unless suppressed. Deletion is best-effort forward once started: missing
// files are tolerated and filesystem failures after the registry entry is
// gone never re-insert it.
func (m *Manager) Delete(ctx context.Context, modelID string, backupFirst bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.store.Read()
	name, entry, ok := doc.Lookup(modelID)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrNotFound, modelID)
	}

	if backupFirst {
		if _, err := m.backupEntry(modelID, entry); err != nil {
			return err
		}
	}

	for _, path := range []string{entry.FilePath, entry.MetadataPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove model file", "model_id", modelID, "path", path, "error", err)
		}
	}

	// Prune the model directory if nothing is left in it.
	modelDir := filepath.Dir(entry.FilePath)
	if items, err := os.ReadDir(modelDir); err == nil && len(items) == 0 {
		_ = os.Remove(modelDir)
	}

	doc.Remove(name, modelID)
	if err := m.store.Write(ctx, doc); err != nil {
		return err
	}

	slog.Info("Model deleted", "model_id", modelID, "backed_up", backupFirst)
	return nil
}

// Backup copies a model's artifact and metadata into a fresh timestamped
// backup directory. The registry is not touched; backups accumulate side by
// side and are never pruned automatically.
func (m *Manager) Backup(_ context.Context, modelID string) (string, error) {
	doc := m.store.Read()
	_, entry, ok := doc.Lookup(modelID)
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrNotFound, modelID)
	}
	return m.backupEntry(modelID, entry)
}

func (m *Manager) backupEntry(modelID string, entry model.Entry) (string, error) {
	stamp := time.Now().UTC().Format(backupStampLayout)
	dir := filepath.Join(m.backupDir, modelID+"_"+stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	for _, src := range []string{entry.FilePath, entry.MetadataPath} {
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := xfs.CopyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return "", fmt.Errorf("backup %s: %w", modelID, err)
		}
	}

	slog.Info("Model backup created", "model_id", modelID, "backup_dir", dir)
	return dir, nil
}

// Restore recreates a model from a backup directory under a brand-new model
// ID. The original backup is never modified or removed.
func (m *Manager) Restore(ctx context.Context, backupDir string) (string, error) {
	items, err := os.ReadDir(backupDir)
	if err != nil {
		return "", fmt.Errorf("%w: backup directory %s", model.ErrNotFound, backupDir)
	}

	metadataFile := ""
	for _, item := range items {
		if !item.IsDir() && strings.HasSuffix(item.Name(), metadataSuffix) {
			metadataFile = filepath.Join(backupDir, item.Name())
			break
		}
	}
	if metadataFile == "" {
		return "", fmt.Errorf("%w: no metadata document in backup %s", model.ErrMissingArtifact, backupDir)
	}

	raw, err := os.ReadFile(metadataFile)
	if err != nil {
		return "", fmt.Errorf("read backup metadata: %w", err)
	}
	var meta model.Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return "", fmt.Errorf("%w: decode backup metadata: %v", model.ErrSerialization, err)
	}

	oldID := meta.ModelID
	meta.Version += "_restored"
	newID := model.NewModelID(meta.ModelName, meta.Version, time.Now())

	modelDir := filepath.Join(m.baseDir, newID)
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	// Copy every backup file, renaming any name that embeds the old model ID.
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		newName := strings.ReplaceAll(item.Name(), oldID, newID)
		if err := xfs.CopyFile(filepath.Join(backupDir, item.Name()), filepath.Join(modelDir, newName)); err != nil {
			return "", fmt.Errorf("restore %s: %w", item.Name(), err)
		}
	}

	meta.ModelID = newID
	meta.FilePath = filepath.Join(modelDir, newID+predictor.Ext(meta.ModelType))
	metadataPath := filepath.Join(modelDir, newID+metadataSuffix)
	if err := writeMetadata(metadataPath, &meta); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.store.Read()
	doc.Set(meta.ModelName, newID, model.Entry{
		Version:            meta.Version,
		TrainingDate:       meta.TrainingDate,
		PerformanceMetrics: meta.PerformanceMetrics,
		FilePath:           meta.FilePath,
		MetadataPath:       metadataPath,
		Active:             true,
	})
	if err := m.store.Write(ctx, doc); err != nil {
		return "", err
	}

	slog.Info("Model restored", "model_id", newID, "restored_from", oldID, "backup_dir", backupDir)
	return newID, nil
}

// Cleanup deletes old active versions of a model name, keeping the
// keepVersions most recent by training date. A failure deleting one version
// does not abort cleanup of the others; only actually-deleted IDs are
// returned.
func (m *Manager) Cleanup(ctx context.Context, name string, keepVersions int) ([]string, error) {
	doc := m.store.Read()
	actives := make([]ModelInfo, 0, len(doc.Models[name]))
	for id, entry := range doc.Models[name] {
		if entry.Active {
			actives = append(actives, ModelInfo{ModelID: id, Entry: entry})
		}
	}
	if len(actives) <= keepVersions {
		return nil, nil
	}

	sort.Slice(actives, func(i, j int) bool {
		if actives[i].TrainingDate != actives[j].TrainingDate {
			return actives[i].TrainingDate > actives[j].TrainingDate
		}
		return actives[i].ModelID > actives[j].ModelID
	})

	var deleted []string
	for _, info := range actives[keepVersions:] {
		if err := m.Delete(ctx, info.ModelID, true); err != nil {
			slog.Error("Failed to delete old model version", "model_id", info.ModelID, "error", err)
			continue
		}
		deleted = append(deleted, info.ModelID)
	}

	slog.Info("Cleaned up old model versions", "model_name", name, "deleted", len(deleted))
	return deleted, nil
}

func writeMetadata(path string, meta *model.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", model.ErrSerialization, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata document: %w", err)
	}
	return nil
}
