// Package cli provides the shared plumbing of the koe command-line tool.
//
// This package includes:
//   - Configuration management (contexts holding dictionary, model and
//     storage settings) with KOE_* environment overrides
//   - Output formatting (JSON, YAML, raw) and styled tables, written to
//     stdout, local files or s3:// locations
//   - Request loading (YAML/JSON) from files, s3:// or stdin
//   - Logger setup
//
// Configuration is stored in ~/.koe/<app>/ directory, supporting
// multiple contexts similar to kubectl.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("koe")
//	ctx, err := cfg.ResolveContext("")
//	err = ctx.ApplyEnv(nil)
//
//	cli.Output(ctx, query, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	    S3:     c.S3,
//	})
package cli
