package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haivivi/koe/pkg/storage"
)

// Stdin is the location that makes [ReadInput] read standard input.
const Stdin = "-"

// ReadInput reads a whole input from a local path, an s3:// location or,
// for [Stdin], standard input.
func ReadInput(ctx context.Context, location string, s3cfg *storage.S3Config) ([]byte, error) {
	if location == Stdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("cli: read stdin: %w", err)
		}
		return data, nil
	}
	store, path, err := storage.Resolve(location, s3cfg)
	if err != nil {
		return nil, err
	}
	data, err := storage.ReadFile(ctx, store, path)
	if err != nil {
		return nil, fmt.Errorf("cli: read %s: %w", location, err)
	}
	return data, nil
}

// LoadRequest reads a YAML or JSON document (an AudioQuery, a manifest)
// and decodes it into v.
func LoadRequest(ctx context.Context, location string, s3cfg *storage.S3Config, v any) error {
	data, err := ReadInput(ctx, location, s3cfg)
	if err != nil {
		return err
	}
	return ParseRequest(data, location, v)
}

// ParseRequest decodes data by the extension of name. Without a known
// extension, content starting with '{' or '[' is JSON and anything else is
// YAML.
func ParseRequest(data []byte, name string, v any) error {
	var isJSON bool
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
	case ".json":
		isJSON = true
	default:
		trimmed := bytes.TrimSpace(data)
		isJSON = len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
	}
	if isJSON {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("cli: parse JSON %s: %w", name, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cli: parse YAML %s: %w", name, err)
	}
	return nil
}
