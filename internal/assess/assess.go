// Package assess asks the scoring model for business assessments and
// website grades.
package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/TobiSchelling/bizscout/internal/llm"
	"github.com/TobiSchelling/bizscout/internal/throttle"
)

// ErrNotConfigured means no scoring provider is available. No request is
// made.
var ErrNotConfigured = eris.New("scoring provider not configured")

// ErrUnparseable means the reply did not contain a JSON object.
var ErrUnparseable = eris.New("scoring reply is not a JSON object")

type client struct {
	provider llm.Provider
	limiter  *throttle.Limiter
}

func (c client) configured() bool {
	return c.provider != nil && c.provider.IsConfigured()
}

func (c client) complete(ctx context.Context, req llm.Request) (map[string]any, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	var reply string
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		reply, err = c.provider.Generate(ctx, req)
		return err
	})
	if err != nil {
		return nil, eris.Wrap(err, "scoring request")
	}

	data := llm.ParseJSONResponse(reply)
	if data == nil {
		return nil, ErrUnparseable
	}
	return data, nil
}

func getString(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		switch s := v.(type) {
		case string:
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		case float64, bool:
			return fmt.Sprint(s)
		}
	}
	return fallback
}

func getFloat(m map[string]any, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func getInt(m map[string]any, key string, fallback int) int {
	f := getFloat(m, key, math.NaN())
	if math.IsNaN(f) {
		return fallback
	}
	return int(f)
}

func getStringList(m map[string]any, key string) []string {
	out := []string{}
	switch v := m[key].(type) {
	case []any:
		for _, item := range v {
			var s string
			switch it := item.(type) {
			case string:
				s = strings.TrimSpace(it)
			case nil:
			default:
				s = fmt.Sprint(it)
			}
			if s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// normalizeLabel maps s case-insensitively onto one of options, ignoring
// spaces and hyphens. Anything else is "Unknown".
func normalizeLabel(s string, options []string, unknown string) string {
	key := labelKey(s)
	if key == "" {
		return unknown
	}
	for _, opt := range options {
		if labelKey(opt) == key {
			return opt
		}
	}
	return unknown
}

func labelKey(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '_' {
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

func clamp[T int | float64](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

func orUnknown(s, unknown string) string {
	if strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}
