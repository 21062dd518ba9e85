// ABOUTME: Normalizes the two server response envelopes into one canonical shape
// ABOUTME: Bare arrays and wrapped objects both become entity.Collection at this boundary

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/2389/fintrack/internal/entity"
)

// decodeCollection parses a list response. The server returns either a bare
// array or an object wrapping it under the type's plural name with a count:
//
//	[ {...}, {...} ]
//	{ "expenses": [ {...}, {...} ], "count": 2 }
//
// Ambiguity stops here; nothing past the gateway sees the raw envelope.
func decodeCollection(t entity.Type, data []byte) (*entity.Collection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &entity.Collection{Type: t}, nil
	}

	var items []json.RawMessage
	count := -1

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding %s array: %w", t, err)
		}
	} else {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decoding %s envelope: %w", t, err)
		}
		wrapped, ok := envelope[t.Plural()]
		if !ok {
			return nil, fmt.Errorf("decoding %s envelope: missing %q key", t, t.Plural())
		}
		if err := json.Unmarshal(wrapped, &items); err != nil {
			return nil, fmt.Errorf("decoding %s items: %w", t, err)
		}
		if raw, ok := envelope["count"]; ok {
			if err := json.Unmarshal(raw, &count); err != nil {
				return nil, fmt.Errorf("decoding %s count: %w", t, err)
			}
		}
	}

	out := &entity.Collection{Type: t, Records: make([]entity.Record, 0, len(items))}
	for _, item := range items {
		rec, err := decodeRecord(t, item)
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, rec)
	}
	if count >= 0 {
		out.Count = count
	} else {
		out.Count = len(out.Records)
	}
	return out, nil
}

// decodeRecord parses a single entity object.
func decodeRecord(t entity.Type, data []byte) (entity.Record, error) {
	rec, err := entity.New(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", t, err)
	}
	return rec, nil
}
