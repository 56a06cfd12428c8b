package inference

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vitalsense/mlserve/internal/model"
	"github.com/vitalsense/mlserve/internal/predictor"
)

// Loader resolves model identifiers to live model objects. Implemented by
// the persistence manager.
type Loader interface {
	Load(ctx context.Context, modelID string) (any, *model.Metadata, error)
	LoadLatest(ctx context.Context, name string) (any, *model.Metadata, error)
}

// Pipeline holds deserialized models and their metadata in memory, keyed by
// model ID, and dispatches predictions by model type. Entries are evicted
// only explicitly: no TTL, no memory-pressure eviction. That is a deliberate
// simplicity choice for a small fixed set of models.
type Pipeline struct {
	loader Loader
	group  singleflight.Group

	mu     sync.RWMutex
	models map[string]any
	meta   map[string]*model.Metadata
}

// NewPipeline creates an empty inference pipeline over a loader.
func NewPipeline(loader Loader) *Pipeline {
	return &Pipeline{
		loader: loader,
		models: make(map[string]any),
		meta:   make(map[string]*model.Metadata),
	}
}

// Prepare loads a model into the cache and returns the resolved model ID.
// An empty modelID resolves to the latest active version of name. A prior
// cache entry for the resolved ID is overwritten. Duplicate concurrent
// prepares for the same key share one load.
func (p *Pipeline) Prepare(ctx context.Context, name, modelID string) (string, error) {
	key := name + "/" + modelID
	resolved, err, _ := p.group.Do(key, func() (any, error) {
		var (
			mdl  any
			meta *model.Metadata
			err  error
		)
		if modelID == "" {
			mdl, meta, err = p.loader.LoadLatest(ctx, name)
		} else {
			mdl, meta, err = p.loader.Load(ctx, modelID)
		}
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.models[meta.ModelID] = mdl
		p.meta[meta.ModelID] = meta
		p.mu.Unlock()

		slog.Info("Model prepared for inference", "model_id", meta.ModelID, "model_type", meta.ModelType)
		return meta.ModelID, nil
	})
	if err != nil {
		return "", err
	}
	return resolved.(string), nil
}

// Predict runs a single inference against a cached model. The model must
// have been prepared first; there is no implicit lazy load, so cache
// population stays an explicit, observable step.
func (p *Pipeline) Predict(modelID string, input []float64) (*model.Prediction, error) {
	p.mu.RLock()
	mdl, ok := p.models[modelID]
	meta := p.meta[modelID]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (call Prepare first)", model.ErrNotLoaded, modelID)
	}

	// Reject wrong-length vectors before any model computation runs.
	if pr, isPredictor := mdl.(predictor.Predictor); isPredictor {
		if dim := pr.InputDim(); dim > 0 && len(input) != dim {
			return nil, fmt.Errorf("%w: model %s expects %d features, got %d", model.ErrValidation, modelID, dim, len(input))
		}
	}

	var (
		out   []float64
		probs [][]float64
		err   error
	)
	switch meta.ModelType {
	case model.ModelTypeTensorNetwork:
		out, err = forwardTensor(mdl, meta, input)
	case model.ModelTypeSklearnLike:
		out, probs, err = predictEstimator(mdl, input)
	default:
		out, err = predictCustom(mdl, input)
	}
	if err != nil {
		return nil, err
	}

	return &model.Prediction{
		ModelID:       modelID,
		ModelName:     meta.ModelName,
		ModelVersion:  meta.Version,
		Prediction:    materialize(out),
		Probabilities: wrapProbabilities(probs),
		Timestamp:     time.Now().UTC(),
	}, nil
}

// BatchPredict applies Predict sequentially. A failure on one element aborts
// the whole batch and surfaces that failure; there are no partial results.
func (p *Pipeline) BatchPredict(modelID string, inputs [][]float64) ([]*model.Prediction, error) {
	results := make([]*model.Prediction, 0, len(inputs))
	for i, input := range inputs {
		result, err := p.Predict(modelID, input)
		if err != nil {
			return nil, fmt.Errorf("batch element %d: %w", i, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// Unload removes a model from the cache. A no-op when the model is absent.
func (p *Pipeline) Unload(modelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.models[modelID]; !ok {
		return
	}
	delete(p.models, modelID)
	delete(p.meta, modelID)
	slog.Info("Model unloaded from cache", "model_id", modelID)
}

// Loaded returns the IDs of all currently cached models.
func (p *Pipeline) Loaded() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.models))
	for id := range p.models {
		ids = append(ids, id)
	}
	return ids
}

// Clear drops all cache entries.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.models = make(map[string]any)
	p.meta = make(map[string]*model.Metadata)
	slog.Info("Model cache cleared")
}

// forwardTensor runs a tensor-network model: inference mode, input converted
// to the tensor representation, moved to an accelerator only when the
// metadata allows it and one is actually available, result detached to a
// plain slice.
func forwardTensor(mdl any, meta *model.Metadata, input []float64) ([]float64, error) {
	net, ok := mdl.(*predictor.Network)
	if !ok {
		// A foreign state-dict model still serves through its predict capability.
		pr, isPredictor := mdl.(predictor.Predictor)
		if !isPredictor {
			return nil, fmt.Errorf("%w: tensor-network model %T has no predict capability", model.ErrUnsupported, mdl)
		}
		return pr.Predict(input)
	}

	net.Eval()
	device := predictor.DeviceCPU
	if meta.GPUCompatible && predictor.AcceleratorAvailable() {
		device = predictor.DeviceAccelerator
	}
	net.To(device)

	out, err := net.Forward(predictor.TensorFrom(input, device))
	if err != nil {
		return nil, err
	}
	return out.Slice(), nil
}

// predictEstimator runs an sklearn-like model, attaching probabilities only
// when the model exposes the capability. Absence is not an error.
func predictEstimator(mdl any, input []float64) ([]float64, [][]float64, error) {
	pr, ok := mdl.(predictor.Predictor)
	if !ok {
		return nil, nil, fmt.Errorf("%w: sklearn-like model %T has no predict capability", model.ErrUnsupported, mdl)
	}
	out, err := pr.Predict(input)
	if err != nil {
		return nil, nil, err
	}

	var probs [][]float64
	if est, ok := mdl.(predictor.ProbabilityEstimator); ok {
		probs, err = est.PredictProbabilities(input)
		if err != nil {
			return nil, nil, err
		}
	}
	return out, probs, nil
}

// predictCustom runs a custom model through whichever predict capability it
// exposes.
func predictCustom(mdl any, input []float64) ([]float64, error) {
	switch m := mdl.(type) {
	case predictor.Predictor:
		return m.Predict(input)
	case predictor.ScalarPredictor:
		v, err := m.PredictScalar(input)
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil
	default:
		return nil, fmt.Errorf("%w: model %T has no predict capability", model.ErrUnsupported, mdl)
	}
}

// materialize guarantees the prediction is a non-nil sequence.
func materialize(out []float64) []float64 {
	if out == nil {
		return []float64{}
	}
	return out
}

// wrapProbabilities normalizes probabilities to a nested sequence. A bare
// single-row slice stays one-by-N; nil stays nil (absent from the result).
func wrapProbabilities(probs [][]float64) [][]float64 {
	if probs == nil {
		return nil
	}
	for i, row := range probs {
		if row == nil {
			probs[i] = []float64{}
		}
	}
	return probs
}
