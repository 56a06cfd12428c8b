package predictor

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vitalsense/mlserve/internal/model"
)

// Artifact serialization dispatches on the model type tag. Sklearn-like
// estimators are stored as JSON (parameters stay inspectable on disk);
// tensor-network and custom models are stored as gob.

// Ext returns the artifact file extension for a model type.
func Ext(t model.ModelType) string {
	if t == model.ModelTypeSklearnLike {
		return ".json"
	}
	return ".gob"
}

type jsonEnvelope struct {
	Kind  string          `json:"kind"`
	Model json.RawMessage `json:"model"`
}

type gobEnvelope struct {
	Model any
}

var jsonKinds = map[string]func() any{
	"linear_regressor":    func() any { return &LinearRegressor{} },
	"logistic_classifier": func() any { return &LogisticClassifier{} },
}

func init() {
	gob.Register(&Network{})
	gob.Register(&LinearRegressor{})
	gob.Register(&LogisticClassifier{})
}

// Register makes a custom model type known to the gob codec. Must be called
// before saving or loading custom artifacts of that type.
func Register(m any) {
	gob.Register(m)
}

// Encode writes the serialized artifact for m according to its type tag.
func Encode(w io.Writer, t model.ModelType, m any) error {
	switch t {
	case model.ModelTypeSklearnLike:
		kind, ok := jsonKind(m)
		if !ok {
			return fmt.Errorf("%w: unknown sklearn-like model type %T", model.ErrSerialization, m)
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %v", model.ErrSerialization, kind, err)
		}
		if err := json.NewEncoder(w).Encode(jsonEnvelope{Kind: kind, Model: raw}); err != nil {
			return fmt.Errorf("%w: write artifact: %v", model.ErrSerialization, err)
		}
		return nil
	default:
		if err := gob.NewEncoder(w).Encode(&gobEnvelope{Model: m}); err != nil {
			return fmt.Errorf("%w: encode %T: %v", model.ErrSerialization, m, err)
		}
		return nil
	}
}

// Decode reconstructs a model artifact of the given type.
func Decode(r io.Reader, t model.ModelType) (any, error) {
	switch t {
	case model.ModelTypeSklearnLike:
		var env jsonEnvelope
		if err := json.NewDecoder(r).Decode(&env); err != nil {
			return nil, fmt.Errorf("%w: read artifact: %v", model.ErrSerialization, err)
		}
		factory, ok := jsonKinds[env.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: unknown sklearn-like model kind %q", model.ErrSerialization, env.Kind)
		}
		m := factory()
		if err := json.Unmarshal(env.Model, m); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", model.ErrSerialization, env.Kind, err)
		}
		return m, nil
	default:
		var env gobEnvelope
		if err := gob.NewDecoder(r).Decode(&env); err != nil {
			return nil, fmt.Errorf("%w: decode artifact: %v", model.ErrSerialization, err)
		}
		return env.Model, nil
	}
}

func jsonKind(m any) (string, bool) {
	switch m.(type) {
	case *LinearRegressor:
		return "linear_regressor", true
	case *LogisticClassifier:
		return "logistic_classifier", true
	default:
		return "", false
	}
}
