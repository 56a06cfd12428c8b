package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ModelType tags a stored artifact with its serialization and predict strategy.
type ModelType string

const (
	// ModelTypeSklearnLike marks fitted estimators with inspectable parameters.
	ModelTypeSklearnLike ModelType = "sklearn-like"

	// ModelTypeTensorNetwork marks models whose state is a named tensor dictionary.
	ModelTypeTensorNetwork ModelType = "tensor-network"

	// ModelTypeCustom marks everything else.
	ModelTypeCustom ModelType = "custom"
)

// Valid reports whether t is a member of the closed model type set.
func (t ModelType) Valid() bool {
	switch t {
	case ModelTypeSklearnLike, ModelTypeTensorNetwork, ModelTypeCustom:
		return true
	default:
		return false
	}
}

// Metadata describes one stored model version. Immutable once written.
type Metadata struct {
	ModelID            string             `json:"model_id"`
	ModelName          string             `json:"model_name"`
	ModelType          ModelType          `json:"model_type"`
	Version            string             `json:"version"`
	TrainingDate       string             `json:"training_date"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
	Parameters         map[string]any     `json:"parameters,omitempty"`
	DataHash           string             `json:"data_hash"`
	FilePath           string             `json:"file_path"`
	FileSize           int64              `json:"file_size"`
	GPUCompatible      bool               `json:"gpu_compatible"`
	FrameworkVersion   string             `json:"framework_version,omitempty"`
	Dependencies       map[string]string  `json:"dependencies,omitempty"`
}

// Entry is the denormalized registry view of one stored model version, kept
// for fast listing without reopening metadata documents.
type Entry struct {
	Version            string             `json:"version"`
	TrainingDate       string             `json:"training_date"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
	FilePath           string             `json:"file_path"`
	MetadataPath       string             `json:"metadata_path"`
	Active             bool               `json:"active"`
}

// Document is the durable registry: model name -> model ID -> entry.
// It is persisted as a single JSON document and rewritten in full on every
// mutation. Revision is an optimistic concurrency stamp bumped on each write.
type Document struct {
	Revision int                         `json:"revision"`
	Models   map[string]map[string]Entry `json:"models"`
}

// NewDocument returns an empty registry document.
func NewDocument() *Document {
	return &Document{Models: make(map[string]map[string]Entry)}
}

// Lookup scans all model names for the given model ID.
func (d *Document) Lookup(modelID string) (name string, entry Entry, ok bool) {
	for n, entries := range d.Models {
		if e, found := entries[modelID]; found {
			return n, e, true
		}
	}
	return "", Entry{}, false
}

// Set inserts or replaces the entry for a model ID under a model name.
func (d *Document) Set(name, modelID string, entry Entry) {
	if d.Models == nil {
		d.Models = make(map[string]map[string]Entry)
	}
	if d.Models[name] == nil {
		d.Models[name] = make(map[string]Entry)
	}
	d.Models[name][modelID] = entry
}

// Remove drops the entry for a model ID and prunes the model name key when
// no versions remain under it.
func (d *Document) Remove(name, modelID string) {
	entries, ok := d.Models[name]
	if !ok {
		return
	}
	delete(entries, modelID)
	if len(entries) == 0 {
		delete(d.Models, name)
	}
}

const (
	trainingDateLayout = "2006-01-02T15:04:05Z"
	idTimestampLayout  = "20060102_150405"
)

// NewTrainingDate formats a timestamp as the fixed-width UTC training date
// used as the "latest" sort key. The layout is zero-padded so lexicographic
// comparison orders by time.
func NewTrainingDate(t time.Time) string {
	return t.UTC().Format(trainingDateLayout)
}

// NewModelID derives a unique model identifier from the model name, version
// and creation time. The random suffix keeps two saves of the same
// name/version within one second from colliding.
func NewModelID(name, version string, t time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s_v%s_%s_%s", name, version, t.UTC().Format(idTimestampLayout), suffix)
}
