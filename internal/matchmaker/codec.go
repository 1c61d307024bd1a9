package matchmaker

import (
	"encoding/json"
	"strings"
)

func encodeString(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}

func decodeString(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}
