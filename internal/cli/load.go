package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"framesearch/config"
	"framesearch/internal/adapter/store"
	"framesearch/internal/domain"
	"framesearch/internal/usecase"
)

var (
	loadMappings []string
	loadVectors  []string
	loadReset    bool
)

var loadCmd = &cobra.Command{
	Use:   "load [path]",
	Short: "Import the corpus mapping and backend vectors",
	Long: `Import corpus mapping shards and precomputed backend vectors into the
frame database (.framesearch/frames.db by default).

Mapping shards are JSON arrays of {"indice", "video_id", "frame_id"}.
Vector shards are streams of {"indice", "vector"} objects, one backend each.
Patterns are doublestar globs relative to path.

Examples:
  framesearch load --mapping "map/*.json" ./data
  framesearch load --vectors apple_clip="clip/apple/**/*.jsonl" --vectors laion_clip="clip/laion/*.jsonl" ./data
  framesearch load --reset --mapping "map/*.json" ./data`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringArrayVar(&loadMappings, "mapping", nil, "glob of mapping shards (repeatable)")
	loadCmd.Flags().StringArrayVar(&loadVectors, "vectors", nil, "backend=glob of vector shards (repeatable)")
	loadCmd.Flags().BoolVar(&loadReset, "reset", false, "clear the mapping and all vectors first")
}

func runLoad(cmd *cobra.Command, args []string) error {
	source := GetRootDir()
	if len(args) > 0 {
		var err error
		source, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	vectorGlobs, err := parseVectorFlags(loadVectors)
	if err != nil {
		return err
	}
	if len(loadMappings) == 0 && len(vectorGlobs) == 0 && !loadReset {
		return fmt.Errorf("nothing to load: pass --mapping and/or --vectors")
	}

	cfg := GetConfig()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := config.EnsureDataDir(GetRootDir()); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := cfg.DBPath(GetRootDir())
	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open corpus store: %w", err)
	}
	defer st.Close()

	migration, err := st.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	if migration.NeedsRebuild && !loadReset {
		return fmt.Errorf("corpus rebuild required (%s), rerun with --reset", migration.Reason)
	}
	if loadReset {
		fmt.Println("Clearing existing corpus...")
		if err := st.Clear(); err != nil {
			return fmt.Errorf("failed to clear corpus: %w", err)
		}
	} else if migration.NeedsMigration {
		fmt.Printf("Running schema migration: %s\n", migration.Reason)
	}

	loadUC := usecase.NewLoadUseCase(st, logger)

	if len(loadMappings) > 0 {
		files, err := loadUC.Discover(source, loadMappings)
		if err != nil {
			return err
		}
		bar := newLoadBar(len(files), "Mapping")
		result, err := loadUC.LoadMappings(ctx, files, progressTo(bar))
		if err != nil {
			return fmt.Errorf("mapping load failed: %w", err)
		}
		fmt.Printf("  Mapping: %d entries from %d files\n", result.Entries, result.Files)
	}

	for _, backend := range sortedBackends(vectorGlobs) {
		bc, ok := cfg.Backends[string(backend)]
		if !ok {
			return fmt.Errorf("backend %s is not configured", backend)
		}
		if bc.Index.Provider == "pgvector" {
			return fmt.Errorf("backend %s uses pgvector; load its vectors into postgres directly", backend)
		}

		files, err := loadUC.Discover(source, []string{vectorGlobs[backend]})
		if err != nil {
			return err
		}
		vectors, err := store.NewBoltVectorStore(st.DB(), backend, bc.Dimension)
		if err != nil {
			return fmt.Errorf("failed to open %s vectors: %w", backend, err)
		}

		bar := newLoadBar(len(files), string(backend))
		result, err := loadUC.LoadVectors(ctx, files, vectors, progressTo(bar))
		if err != nil {
			return fmt.Errorf("%s vector load failed: %w", backend, err)
		}
		fmt.Printf("  %s: %d vectors from %d files\n", backend, result.Entries, result.Files)
	}

	if err := st.Migrate(cfg); err != nil {
		return fmt.Errorf("failed to update schema info: %w", err)
	}

	fmt.Printf("\nCorpus stored at: %s\n", dbPath)
	return nil
}

// parseVectorFlags turns backend=glob flags into a map.
func parseVectorFlags(flags []string) (map[domain.Backend]string, error) {
	out := make(map[domain.Backend]string, len(flags))
	for _, f := range flags {
		name, glob, ok := strings.Cut(f, "=")
		if !ok || glob == "" {
			return nil, fmt.Errorf("invalid --vectors %q, expected backend=glob", f)
		}
		backend := domain.Backend(name)
		if !backend.Known() {
			return nil, fmt.Errorf("unknown backend %q", name)
		}
		out[backend] = glob
	}
	return out, nil
}

func sortedBackends(m map[domain.Backend]string) []domain.Backend {
	out := make([]domain.Backend, 0, len(m))
	for b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func newLoadBar(total int, label string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", label)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func progressTo(bar *progressbar.ProgressBar) usecase.ProgressFunc {
	start := time.Now()
	done := 0
	return func(path string, entries int) {
		done++
		bar.Add(1)
		if remaining := bar.GetMax() - done; remaining > 0 {
			rate := float64(done) / time.Since(start).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", filepath.Base(path), formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

