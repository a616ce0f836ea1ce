package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/koe/pkg/analyzer"
	"github.com/haivivi/koe/pkg/cli"
	"github.com/haivivi/koe/pkg/inference"
	"github.com/haivivi/koe/pkg/storage"
	"github.com/haivivi/koe/pkg/synthesis"
	"github.com/haivivi/koe/pkg/userdict"
	"github.com/haivivi/koe/pkg/voicemodel"
)

// signalContext returns a context canceled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// openAnalyzer loads the context's lexicon and user dictionary.
func openAnalyzer(ctx context.Context, c *cli.Context) (*analyzer.Context, error) {
	if c.DictDir == "" {
		return nil, fmt.Errorf("context %q has no dictionary directory", c.Name)
	}
	a, err := analyzer.New(ctx, c.DictDir, analyzer.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if c.UserDict != "" {
		dict, err := loadUserDict(ctx, c, c.UserDict)
		if err != nil {
			return nil, err
		}
		if err := a.UseUserDict(dict); err != nil {
			return nil, err
		}
		printVerbose("User dictionary: %s (%d words)", c.UserDict, dict.Len())
	}
	return a, nil
}

func loadUserDict(ctx context.Context, c *cli.Context, location string) (*userdict.Dictionary, error) {
	store, path, err := storage.Resolve(location, c.S3)
	if err != nil {
		return nil, err
	}
	dict := userdict.New()
	if err := dict.LoadFrom(ctx, store, path); err != nil {
		return nil, err
	}
	return dict, nil
}

// loadModel reads a bundle from a path or s3:// location.
func loadModel(ctx context.Context, c *cli.Context, location string) (*voicemodel.VoiceModel, error) {
	store, path, err := storage.Resolve(location, c.S3)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return voicemodel.FromManifest(ctx, store, path)
	}
	return voicemodel.FromStore(ctx, store, path)
}

// openSynthesizer builds a synthesizer for the context and loads its models.
func openSynthesizer(ctx context.Context, c *cli.Context) (*synthesis.Synthesizer, error) {
	a, err := openAnalyzer(ctx, c)
	if err != nil {
		return nil, err
	}
	return openSynthesizerWith(ctx, c, a)
}

func openSynthesizerWith(ctx context.Context, c *cli.Context, a *analyzer.Context) (*synthesis.Synthesizer, error) {
	opts := synthesis.Options{
		CPUNumThreads: c.CPUThreads,
		Logger:        logger,
	}
	mode, err := inference.ParseAccelerationMode(c.Acceleration)
	if err != nil {
		return nil, err
	}
	opts.AccelerationMode = mode
	if c.Backend != "" {
		b, ok := inference.Lookup(c.Backend)
		if !ok {
			return nil, fmt.Errorf("unknown backend %q (available: %s)", c.Backend, strings.Join(inference.Backends(), ", "))
		}
		opts.Backend = b
	}

	s, err := synthesis.New(ctx, a, opts)
	if err != nil {
		return nil, err
	}
	if len(c.Models) == 0 {
		s.Close()
		return nil, fmt.Errorf("context %q has no voice models", c.Name)
	}
	for _, loc := range c.Models {
		m, err := loadModel(ctx, c, loc)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
		if err := s.LoadVoiceModel(ctx, m); err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
		printVerbose("Loaded %s as %s", loc, m.ID())
	}
	return s, nil
}

// styleFlag returns --style, or the context default when the flag is unset.
func styleFlag(cmd *cobra.Command, c *cli.Context) voicemodel.StyleID {
	if cmd.Flags().Changed("style") {
		v, _ := cmd.Flags().GetUint32("style")
		return voicemodel.StyleID(v)
	}
	return voicemodel.StyleID(c.DefaultStyle)
}
