package provider

import (
	"regexp"
	"strings"

	"paint-mixer/internal/pkg/common"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// ParseResponse 依序嘗試：整段 JSON、```json 區塊、第一個 { 到最後一個 }
func ParseResponse(text string) (any, error) {
	var v any
	if err := common.ParseJSON(text, &v); err == nil {
		return v, nil
	}

	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		if err := common.ParseJSON(m[1], &v); err == nil {
			return v, nil
		}
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, common.NewParseError("no valid JSON found in response", text)
	}
	if err := common.ParseJSON(text[start:end+1], &v); err != nil {
		return nil, common.NewParseError(err.Error(), text)
	}
	return v, nil
}
