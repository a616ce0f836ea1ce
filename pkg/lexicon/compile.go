package lexicon

import (
	"context"
	"fmt"

	"github.com/goccy/go-yaml"
)

// Source is the YAML form of a dictionary:
//
//	entries:
//	  - surface: 今日
//	    pronunciation: キョー
//	    accent_type: 1
type Source struct {
	Entries []Entry `yaml:"entries"`
}

// ParseSource decodes and validates a YAML dictionary source.
func ParseSource(data []byte) (*Source, error) {
	var src Source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("lexicon: parse source: %w", err)
	}
	for i, e := range src.Entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return &src, nil
}

// Compile parses a YAML source and writes its entries to dst. It returns the
// number of entries written.
func Compile(ctx context.Context, data []byte, dst Store) (int, error) {
	src, err := ParseSource(data)
	if err != nil {
		return 0, err
	}
	if err := dst.Put(ctx, src.Entries...); err != nil {
		return 0, fmt.Errorf("lexicon: write entries: %w", err)
	}
	return len(src.Entries), nil
}
