package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

var rationaleAllowedKeys = map[string]struct{}{
	"rationale": {},
}

type rationaleOutput struct {
	Rationale string `json:"rationale"`
}

// ParseRationale accepts exactly {"rationale": "..."} and returns the trimmed text.
func ParseRationale(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty model output")
	}
	if err := validateKeys(trimmed, rationaleAllowedKeys, []string{"rationale"}); err != nil {
		return "", err
	}
	var v rationaleOutput
	if err := strictDecode([]byte(trimmed), &v); err != nil {
		return "", err
	}
	text := strings.TrimSpace(v.Rationale)
	if text == "" {
		return "", fmt.Errorf("empty rationale")
	}
	return text, nil
}

func strictDecode(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}

func validateKeys(raw string, allowed map[string]struct{}, required []string) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &rawMap); err != nil {
		return err
	}
	for k := range rawMap {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("unknown key %q, allowed: %v", k, sortedKeys(allowed))
		}
	}
	for _, req := range required {
		if _, ok := rawMap[req]; !ok {
			return fmt.Errorf("missing required key %q", req)
		}
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
