package llm

import "strings"

// ExtractJSON finds the first JSON object in an LLM response, tolerating
// markdown code fences and surrounding prose.
func ExtractJSON(response string) string {
	if block := extractJSONBlock(response); block != "" {
		if obj := extractJSONObject(block); obj != "" {
			return obj
		}
	}
	return extractJSONObject(response)
}

// extractJSONBlock extracts the body of a ```json ... ``` code block.
func extractJSONBlock(s string) string {
	start := strings.Index(s, "```json")
	if start == -1 {
		start = strings.Index(s, "```")
		if start == -1 {
			return ""
		}
	}

	nl := strings.Index(s[start:], "\n")
	if nl == -1 {
		return ""
	}
	start += nl + 1

	end := strings.LastIndex(s, "```")
	if end == -1 || end <= start {
		return ""
	}

	return strings.TrimSpace(s[start:end])
}

// extractJSONObject extracts a brace-balanced JSON object from a string.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
