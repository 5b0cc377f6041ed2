package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ResponseCleaner repairs malformed JSON arguments returned by the model:
// markdown fences, mixed prose, trailing commas, and one truncation repair.
type ResponseCleaner struct{}

// NewResponseCleaner creates a new response cleaner.
func NewResponseCleaner() *ResponseCleaner {
	return &ResponseCleaner{}
}

// Clean returns the best-effort JSON object text from a raw model response.
// The result may still fail to parse; callers fall back to Repair before
// declaring a parse failure.
func (rc *ResponseCleaner) Clean(response string) string {
	response = rc.removeMarkdownBlocks(response)
	response = rc.extractObject(response)
	if json.Valid([]byte(response)) {
		return response
	}
	return rc.fixCommonIssues(response)
}

// Repair performs the single truncation repair: trim the text back to the
// last balanced quote and close any dangling braces and brackets.
func (rc *ResponseCleaner) Repair(response string) string {
	response = strings.TrimSpace(response)
	// trim to the last complete string literal
	if n := strings.Count(response, `"`); n%2 == 1 {
		if idx := strings.LastIndex(response, `"`); idx >= 0 {
			response = response[:idx]
		}
	}
	// drop a trailing partial token (e.g. `"key": 12` or `"key":`)
	response = strings.TrimRight(response, " \t\r\n")
	response = strings.TrimRight(response, ",:")
	response = rc.dropDanglingKey(response)

	var braces, brackets int
	inString := false
	escaped := false
	for _, r := range response {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == '{':
			braces++
		case r == '}':
			braces--
		case r == '[':
			brackets++
		case r == ']':
			brackets--
		}
	}
	for ; brackets > 0; brackets-- {
		response += "]"
	}
	for ; braces > 0; braces-- {
		response += "}"
	}
	return response
}

// dropDanglingKey removes a trailing object key left without a value after
// truncation, e.g. `{"a": 1, "b"` becomes `{"a": 1`. A trailing string that
// is an array element is left alone.
func (rc *ResponseCleaner) dropDanglingKey(response string) string {
	if !strings.HasSuffix(response, `"`) || rc.innermostContainer(response) != '{' {
		return response
	}
	open := strings.LastIndex(response[:len(response)-1], `"`)
	if open < 0 {
		return response
	}
	before := strings.TrimRight(response[:open], " \t\r\n")
	if strings.HasSuffix(before, ",") || strings.HasSuffix(before, "{") {
		return strings.TrimRight(strings.TrimSuffix(before, ","), " \t\r\n")
	}
	return response
}

// innermostContainer returns '{' or '[' for the deepest unclosed container,
// or 0 when everything is balanced.
func (rc *ResponseCleaner) innermostContainer(response string) byte {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(response); i++ {
		c := response[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return 0
	}
	return stack[len(stack)-1]
}

func (rc *ResponseCleaner) removeMarkdownBlocks(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

// extractObject slices out the first balanced JSON object from mixed content.
func (rc *ResponseCleaner) extractObject(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return response
	}
	braceCount := 0
	for i := start; i < len(response); i++ {
		switch response[i] {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				return response[start : i+1]
			}
		}
	}
	return response[start:]
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

func (rc *ResponseCleaner) fixCommonIssues(response string) string {
	return trailingCommaRe.ReplaceAllString(response, "$1")
}
