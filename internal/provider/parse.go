package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lepinkainen/tankobon/internal/edition"
	tberrors "github.com/lepinkainen/tankobon/internal/errors"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// extractJSON strips markdown fences and surrounding prose from a generative
// answer and returns the outermost JSON object.
func extractJSON(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// decodeAnswer parses a generative answer into target. It returns false with
// a nil error when the provider answered with an empty object, which is how
// the prompts ask for "unknown".
func decodeAnswer(provider, raw string, target any) (bool, error) {
	obj, ok := extractJSON(raw)
	if !ok {
		return false, tberrors.NewMalformedResponseError(provider, raw, fmt.Errorf("no JSON object in answer"))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return false, tberrors.NewMalformedResponseError(provider, raw, err)
	}
	if len(fields) == 0 {
		return false, nil
	}

	if err := json.Unmarshal([]byte(obj), target); err != nil {
		return false, tberrors.NewMalformedResponseError(provider, raw, err)
	}
	return true, nil
}

// flexStrings accepts a JSON array of strings, a single string or null.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s != "" {
			*f = flexStrings{s}
		}
		return nil
	}
	var list []any
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	out := make(flexStrings, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	*f = out
	return nil
}

// flexInt accepts a number, a numeric string or a description such as
// "12 (as of 2023)". Anything else decodes to zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = 0
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if n, ok := edition.ParseVolumeCount(s); ok {
			*f = flexInt(n)
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n > 0 {
		*f = flexInt(int(n))
	}
	return nil
}

var pricePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// flexFloat accepts a number or a price string such as "$9.99".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = 0
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if m := pricePattern.FindString(strings.ReplaceAll(s, ",", "")); m != "" {
			v, err := strconv.ParseFloat(m, 64)
			if err == nil {
				*f = flexFloat(v)
			}
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexString accepts a string or a bare number (ISBNs sometimes arrive unquoted).
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(data))
	return nil
}
