package unlocks

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// normalize trims, dedupes and sorts ids so stored sets compare stably.
func normalize(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func encode(ids []string) ([]byte, error) {
	raw, err := json.Marshal(normalize(ids))
	if err != nil {
		return nil, fmt.Errorf("unlocks: encode: %w", err)
	}
	return raw, nil
}

func decode(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("unlocks: decode: %w", err)
	}
	return normalize(ids), nil
}
