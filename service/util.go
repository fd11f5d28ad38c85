package service

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LabelMap maps a class index, as a decimal string, to its label text.
type LabelMap map[string]string

func ReadLabelMap(path string) (LabelMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var labels LabelMap
	if err := json.Unmarshal(b, &labels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return labels, nil
}

func (l LabelMap) Lookup(index int) (string, error) {
	text, ok := l[strconv.Itoa(index)]
	if !ok {
		return "", fmt.Errorf("%w: class %d", ErrLabelNotFound, index)
	}
	return text, nil
}

// Title upper-cases the first letter of every word and lower-cases the rest.
func Title(s string) string {
	// a Caser is stateful, so one per call
	return cases.Title(language.Und).String(s)
}

// ShortLabel keeps the text before the first comma, title-cased.
func ShortLabel(text string) string {
	first, _, _ := strings.Cut(text, ",")
	return Title(first)
}
