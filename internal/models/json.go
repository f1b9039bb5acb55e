package models

import (
	"encoding/json"
	"fmt"
)

// EncodeList encodes a list column. A nil list is stored as "[]".
func EncodeList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

// DecodeList decodes a list column. An empty column decodes to an empty list.
func DecodeList[T any](raw string) ([]T, error) {
	items := []T{}
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
