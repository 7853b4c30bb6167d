package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"framesearch/internal/adapter/store"
	"framesearch/internal/domain"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus and vector counts",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

type statsOutput struct {
	DBPath        string         `json:"db_path"`
	SchemaVersion int            `json:"schema_version"`
	Frames        int            `json:"frames"`
	Vectors       map[string]int `json:"vectors"`
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dbPath := cfg.DBPath(GetRootDir())
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no corpus found at %s. Run 'framesearch load' first", dbPath)
	}

	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open corpus: %w", err)
	}
	defer st.Close()

	info, err := st.GetSchemaInfo()
	if err != nil {
		return err
	}
	frames, err := st.FrameCount()
	if err != nil {
		return err
	}

	out := statsOutput{
		DBPath:        dbPath,
		SchemaVersion: info.Version,
		Frames:        frames,
		Vectors:       make(map[string]int),
	}
	for _, backend := range domain.Backends() {
		n, err := st.VectorCount(backend)
		if err != nil {
			return err
		}
		out.Vectors[string(backend)] = n
	}

	if statsJSON {
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Corpus:  %s (schema v%d)\n", out.DBPath, out.SchemaVersion)
	fmt.Printf("Frames:  %d\n", out.Frames)
	for _, backend := range domain.Backends() {
		fmt.Printf("Vectors: %-10s %d\n", backend, out.Vectors[string(backend)])
	}
	return nil
}
