package model

import (
	"encoding/json"
	"fmt"
	"io"
)

// Encode writes the result in wire format
func Encode(w io.Writer, result *AnalysisResult, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// Decode parses a result previously written by Encode
func Decode(r io.Reader) (*AnalysisResult, error) {
	var result AnalysisResult
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}
