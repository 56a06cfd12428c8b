package features

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/vitalsense/mlserve/internal/model"
)

// Schemas maps model names to their ordered feature lists. The mapping is
// replaced wholesale on configuration reload, never patched in place.
type Schemas struct {
	mu      sync.RWMutex
	schemas map[string][]string
}

// NewSchemas creates a schema registry from an initial mapping. The input
// map is copied; the caller keeps ownership of its value.
func NewSchemas(schemas map[string][]string) *Schemas {
	s := &Schemas{}
	s.Replace(schemas)
	return s
}

// Replace swaps in a new full mapping of model name to feature order.
func (s *Schemas) Replace(schemas map[string][]string) {
	next := make(map[string][]string, len(schemas))
	for name, feats := range schemas {
		order := make([]string, len(feats))
		copy(order, feats)
		next[name] = order
	}

	s.mu.Lock()
	s.schemas = next
	s.mu.Unlock()
}

// Names returns the model names with a registered feature schema, sorted.
func (s *Schemas) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.schemas))
	for name := range s.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Features returns the ordered feature list for a model name.
func (s *Schemas) Features(modelName string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	feats, ok := s.schemas[modelName]
	return feats, ok
}

// Vector assembles a numeric feature vector for a model from a raw payload.
// Payload keys are normalized to snake_case before lookup, so camelCase
// client fields match snake_case schema entries. Every schema feature must
// be present and numeric.
func (s *Schemas) Vector(modelName string, raw map[string]any) ([]float64, error) {
	order, ok := s.Features(modelName)
	if !ok {
		return nil, fmt.Errorf("%w: no feature schema for model %q", model.ErrConfiguration, modelName)
	}

	normalized := make(map[string]any, len(raw))
	for key, value := range raw {
		normalized[SnakeCase(key)] = value
	}

	vector := make([]float64, len(order))
	for i, feature := range order {
		value, ok := normalized[feature]
		if !ok {
			return nil, fmt.Errorf("%w: missing feature %q for model %q", model.ErrValidation, feature, modelName)
		}
		f, err := toFloat(value)
		if err != nil {
			return nil, fmt.Errorf("%w: feature %q: %v", model.ErrValidation, feature, err)
		}
		vector[i] = f
	}
	return vector, nil
}

// SnakeCase converts a camelCase or PascalCase identifier to snake_case.
// Already snake_case input passes through unchanged.
func SnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", v)
		}
		return f, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value of type %T is not numeric", value)
	}
}
