package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/doorpoint/terminal-core/internal/confstore"
)

func (s *Service) handleGetConfig(_ context.Context, req *Request) (string, any) {
	// No data at all means "everything".
	if len(req.Data) == 0 || string(req.Data) == "null" {
		return CodeOK, s.store.GetAll()
	}

	var key string
	if err := json.Unmarshal(req.Data, &key); err != nil {
		return CodeError, "Invalid configuration query parameter format"
	}
	if key == "" {
		return CodeOK, s.store.GetAll()
	}

	if group, name, dotted := strings.Cut(key, "."); dotted {
		value, ok := s.store.Get(key)
		if !ok {
			return CodeError, "Configuration item " + key + " does not exist"
		}
		// Single values keep their nesting so the reply shape
		// matches a group query.
		return CodeOK, map[string]any{group: map[string]any{name: value}}
	}

	group, ok := s.store.GetGroup(key)
	if !ok {
		return CodeError, "Configuration group " + key + " does not exist"
	}
	return CodeOK, map[string]any{key: group}
}

func (s *Service) handleSetConfig(_ context.Context, req *Request) (string, any) {
	var doc map[string]any
	if err := json.Unmarshal(req.Data, &doc); err != nil || doc == nil {
		return CodeError, "Parameter error: configuration data format is invalid"
	}

	flat := flattenConfig(doc, "")
	results := s.store.SetBatch(flat)

	var failed, readonly []string
	for key, err := range results {
		switch {
		case err == nil:
		case errors.Is(err, confstore.ErrReadOnly):
			readonly = append(readonly, key)
		default:
			s.logger.Warn("setConfig rejected", "key", key, "error", err)
			failed = append(failed, key)
		}
	}
	sort.Strings(failed)
	sort.Strings(readonly)

	switch {
	case len(failed) > 0:
		return CodeError, "Configuration items failed to set: " + strings.Join(failed, ", ")
	case len(readonly) > 0:
		return CodePartial, "Configuration items are read-only and cannot be modified: " + strings.Join(readonly, ", ")
	default:
		return CodeOK, nil
	}
}

// flattenConfig turns nested {"face": {"livenessVal": 42}} into
// {"face.livenessVal": 42}. Arrays and scalars stop the recursion.
func flattenConfig(doc map[string]any, prefix string) map[string]any {
	flat := make(map[string]any)
	for key, value := range doc {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenConfig(nested, full) {
				flat[k] = v
			}
			continue
		}
		flat[full] = value
	}
	return flat
}
