package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"framesearch/internal/domain"
)

var (
	queryModel    string
	queryText     string
	queryImage    string
	queryEvents   []string
	queryOCR      string
	queryASR      string
	queryPriority []string
	queryLimit    int
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the frame corpus",
	Long: `Search the frame corpus with one backend.

The query kind follows the flags given:
  --image                    search by example image
  --event (repeated)         ordered event sequence
  --ocr and/or --asr files   multi-modal fusion (with optional --text)
  --text                     plain text retrieval

Examples:
  framesearch query --model apple_clip --text "a man riding a horse"
  framesearch query --model laion_clip --image query.jpg --json
  framesearch query --model apple_clip --event "a car stops" --event "a man gets out"
  framesearch query --model apple_clip --text "goal" --ocr ocr.json --priority ocr,clip`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryModel, "model", "m", string(domain.BackendAppleCLIP), "backend (apple_clip, laion_clip)")
	queryCmd.Flags().StringVarP(&queryText, "text", "q", "", "text query")
	queryCmd.Flags().StringVar(&queryImage, "image", "", "image file to search by")
	queryCmd.Flags().StringArrayVar(&queryEvents, "event", nil, "event description, repeat in story order")
	queryCmd.Flags().StringVar(&queryOCR, "ocr", "", "JSON file with OCR hits")
	queryCmd.Flags().StringVar(&queryASR, "asr", "", "JSON file with ASR hits")
	queryCmd.Flags().StringSliceVar(&queryPriority, "priority", nil, "evidence priority order, e.g. ocr,clip,asr")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 20, "frames to print (0 prints all)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := buildRuntime(ctx, GetConfig(), GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	backend := domain.Backend(queryModel)

	var res domain.Result
	switch {
	case queryImage != "":
		image, err := os.ReadFile(queryImage)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		res, err = rt.retrieve.RetrieveByImage(ctx, domain.ImageQuery{Backend: backend, Image: image})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

	case len(queryEvents) > 0:
		res, err = rt.retrieve.RetrieveByEventSequence(ctx, domain.EventSequenceQuery{Backend: backend, Events: queryEvents})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

	case queryOCR != "" || queryASR != "":
		q := domain.MultiModalQuery{Backend: backend, Text: queryText}
		if q.OCR, err = readHits(queryOCR); err != nil {
			return err
		}
		if q.ASR, err = readHits(queryASR); err != nil {
			return err
		}
		for _, p := range queryPriority {
			q.Priority = append(q.Priority, domain.Source(p))
		}
		res, err = rt.retrieve.RetrieveMultiModal(ctx, q)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

	default:
		res, err = rt.retrieve.RetrieveByText(ctx, domain.TextQuery{Backend: backend, Text: queryText})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	}

	return printResult(res)
}

func readHits(path string) ([]domain.Hit, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hits: %w", err)
	}
	var hits []domain.Hit
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return hits, nil
}

func printResult(res domain.Result) error {
	switch res.Status {
	case domain.StatusUnsupportedBackend:
		return fmt.Errorf("model type not supported: %s", queryModel)
	case domain.StatusInsufficientEvidence:
		if !queryJSON {
			fmt.Println("Not enough evidence channels for fusion.")
			return nil
		}
	}

	frames := res.Frames
	if queryLimit > 0 && len(frames) > queryLimit {
		frames = frames[:queryLimit]
	}

	if queryJSON {
		output, _ := json.MarshalIndent(map[string]any{"data": frames}, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(frames) == 0 {
		fmt.Println("No frames found.")
		return nil
	}

	fmt.Printf("Found %d frames", len(res.Frames))
	if len(frames) < len(res.Frames) {
		fmt.Printf(", showing %d", len(frames))
	}
	fmt.Print("\n\n")
	for i, f := range frames {
		fmt.Printf("[%d] %s / %s\n", i+1, f.VideoID, f.FrameID)
	}
	return nil
}
