// Package render encodes graphs and snapshots for an external renderer.
package render

import (
	"encoding/json"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"callgraph/internal/errors"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", errors.NewInvalidRequestError("unknown output format %q (want json or yaml)", s)
	}
}

// Write encodes v to w in the given format.
func Write(w io.Writer, format Format, v interface{}) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to encode json")
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to encode yaml")
		}
		return enc.Close()
	default:
		return errors.NewInvalidRequestError("unknown output format %q", format)
	}
}

// String encodes v and returns the text.
func String(format Format, v interface{}) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, format, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}
