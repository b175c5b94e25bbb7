package a2a

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"google.golang.org/protobuf/types/known/structpb"
)

// NormalizeData returns a deep, JSON-compatible copy of data. Numbers become
// float64, typed slices and maps are flattened to []any and map[string]any,
// and unknown types are round-tripped through encoding/json. Values that
// cannot travel as JSON, such as strings that are not valid UTF-8, are
// reported instead of dropped.
func NormalizeData(data map[string]any) (map[string]any, error) {
	values, err := normalizeStructMap(data)
	if err != nil {
		return nil, err
	}
	payload, err := structpb.NewStruct(values)
	if err != nil {
		return nil, err
	}
	return payload.AsMap(), nil
}

func normalizeStructMap(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for key, value := range values {
		normalized, err := normalizeStructValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = normalized
	}
	return out, nil
}

func normalizeStructValue(value any) (any, error) {
	switch typed := value.(type) {
	case string:
		if !utf8.ValidString(typed) {
			return nil, fmt.Errorf("string is not valid UTF-8")
		}
		return typed, nil
	case nil, bool, float64:
		return typed, nil
	case int:
		return float64(typed), nil
	case int32:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	case uint:
		return float64(typed), nil
	case uint32:
		return float64(typed), nil
	case uint64:
		return float64(typed), nil
	case float32:
		return float64(typed), nil
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return typed.String(), nil
		}
		return f, nil
	case time.Time:
		return typed.Format(time.RFC3339Nano), nil
	case []string:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, item)
		}
		return normalizeList(out)
	case []any:
		return normalizeList(typed)
	case []map[string]any:
		out := make([]any, 0, len(typed))
		for i, item := range typed {
			normalized, err := normalizeStructMap(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, normalized)
		}
		return out, nil
	case map[string]any:
		return normalizeStructMap(typed)
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = item
		}
		return normalizeStructMap(out)
	case *orderedmap.OrderedMap[string, any]:
		return normalizeOrdered(typed)
	case []*orderedmap.OrderedMap[string, any]:
		out := make([]any, 0, len(typed))
		for i, item := range typed {
			normalized, err := normalizeOrdered(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, normalized)
		}
		return out, nil
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(typed, &decoded); err != nil {
			return nil, err
		}
		return normalizeStructValue(decoded)
	default:
		return jsonRoundTrip(typed)
	}
}

func normalizeList(items []any) (any, error) {
	out := make([]any, 0, len(items))
	for i, item := range items {
		normalized, err := normalizeStructValue(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, normalized)
	}
	return out, nil
}

func normalizeOrdered(values *orderedmap.OrderedMap[string, any]) (any, error) {
	if values == nil {
		return nil, nil
	}
	out := make(map[string]any, values.Len())
	for pair := values.Oldest(); pair != nil; pair = pair.Next() {
		normalized, err := normalizeStructValue(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pair.Key, err)
		}
		out[pair.Key] = normalized
	}
	return out, nil
}

func jsonRoundTrip(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
