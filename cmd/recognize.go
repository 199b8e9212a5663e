package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/service"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Identify the face in an image",
	Long: `Computes the face embedding of the image and ranks every registered identity
against it. Prints the best match when it passes the threshold.`,
	Example: `  face-gallery recognize probe.jpg
  face-gallery recognize probe.jpg --top-k 10 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
	recognizeCmd.Flags().Int("top-k", 0, "Number of candidates to show (default TOP_K)")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.svc.Recognize(ctx, image, mustGetInt(cmd, "top-k"))
	if err != nil {
		return fmt.Errorf("recognizing: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	printRecognition(cmd.OutOrStdout(), result)
	return nil
}

func printRecognition(w io.Writer, r *service.Recognition) {
	if r.BestMatch != nil {
		fmt.Fprintf(w, "Best match: %s (id %d, %s %.4f)\n", r.BestMatch.Name, r.BestMatch.ID, r.Convention, r.BestMatch.Score)
	} else {
		fmt.Fprintf(w, "No match (threshold %.4f, %s)\n", r.Threshold, r.Convention)
	}
	if len(r.Candidates) == 0 {
		return
	}
	fmt.Fprintf(w, "\nCandidates (%d of %d scanned):\n", len(r.Candidates), r.Scanned)
	for i, c := range r.Candidates {
		mark := " "
		if c.Accepted {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %2d. %-30s id=%-6d score=%.4f\n", mark, i+1, c.Name, c.ID, c.Score)
	}
}
