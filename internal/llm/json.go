package llm

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// ParseJSONResponse parses a JSON response from an LLM, handling markdown code blocks.
func ParseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines)
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		if len(lines) > 1 {
			text = strings.Join(lines[1:endIdx], "\n")
		} else {
			text = strings.Trim(strings.TrimPrefix(text, "```json"), "`")
		}
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return result
	}

	zap.L().Warn("failed to parse LLM response as JSON", zap.Int("length", len(text)))
	return nil
}
