package predictor

import (
	"os"

	"github.com/vitalsense/mlserve/internal/envvar"
	"github.com/vitalsense/mlserve/internal/model"
)

// Predictor is the core capability a servable model exposes.
type Predictor interface {
	// Predict runs inference over a single feature vector.
	Predict(input []float64) ([]float64, error)

	// InputDim returns the expected feature vector length, or 0 when the
	// model accepts vectors of any length.
	InputDim() int
}

// ScalarPredictor is an optional capability for models that emit a single
// value per call. The inference layer wraps the scalar into a one-element
// prediction sequence.
type ScalarPredictor interface {
	PredictScalar(input []float64) (float64, error)
}

// ProbabilityEstimator is an optional capability for classifiers that report
// per-class probabilities alongside the prediction.
type ProbabilityEstimator interface {
	PredictProbabilities(input []float64) ([][]float64, error)
}

// StateDictProvider marks tensor-network models: their serializable state is
// a named tensor dictionary.
type StateDictProvider interface {
	StateDict() map[string][]float64
}

// Estimator marks sklearn-like models: fitted parameters are inspectable.
type Estimator interface {
	Params() map[string]any
}

// AcceleratorTarget is an optional capability for models that can run on an
// accelerator device.
type AcceleratorTarget interface {
	GPUCompatible() bool
}

// DetectType infers the model type tag from the capability set of an opaque
// model object. Used when a save call supplies no explicit type hint.
func DetectType(m any) model.ModelType {
	if _, ok := m.(StateDictProvider); ok {
		return model.ModelTypeTensorNetwork
	}
	if _, ok := m.(Estimator); ok {
		return model.ModelTypeSklearnLike
	}
	return model.ModelTypeCustom
}

// AcceleratorAvailable reports whether an accelerator device is usable in
// this process. Pure-Go builds have none unless explicitly enabled.
func AcceleratorAvailable() bool {
	return os.Getenv(envvar.MLServeAccelerator) == "1"
}
