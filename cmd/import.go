package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/imagefmt"
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Bulk-register faces from a directory tree",
	Long: `Registers every image found in <dir>/<person>/<image>. The person directory
name becomes the identity name (underscores are shown as spaces). Files that are not
images, or images without a detectable face, are reported and skipped.`,
	Example: `  face-gallery import ./dataset --workers 8
  face-gallery import ./dataset --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Int("workers", constants.DefaultImportWorkers, "Number of parallel registrations")
	importCmd.Flags().Bool("dry-run", false, "List what would be imported without registering")
}

// importJob is one image to register.
type importJob struct {
	Name string
	Path string
}

// importFailure records a skipped image.
type importFailure struct {
	Path string
	Err  error
}

// collectImportJobs lists <root>/<person>/<image> files in a stable order. Hidden entries
// and files without an image extension are ignored.
func collectImportJobs(root string) ([]importJob, error) {
	people, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading import directory: %w", err)
	}

	var jobs []importJob
	for _, person := range people {
		if !person.IsDir() || strings.HasPrefix(person.Name(), ".") {
			continue
		}
		name := strings.TrimSpace(strings.ReplaceAll(person.Name(), "_", " "))
		if name == "" {
			continue
		}

		dir := filepath.Join(root, person.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
				continue
			}
			if _, ok := imagefmt.ByExtension(filepath.Ext(f.Name())); !ok {
				continue
			}
			jobs = append(jobs, importJob{Name: name, Path: filepath.Join(dir, f.Name())})
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Name != jobs[j].Name {
			return jobs[i].Name < jobs[j].Name
		}
		return jobs[i].Path < jobs[j].Path
	})
	return jobs, nil
}

// registerFunc registers one image; it is the service call in production.
type registerFunc func(ctx context.Context, name string, image []byte) error

// runImportJobs registers jobs with bounded concurrency. Individual failures are collected;
// only context cancellation stops the run.
func runImportJobs(ctx context.Context, jobs []importJob, workers int, register registerFunc, bar *progressbar.ProgressBar) (int64, []importFailure, error) {
	var (
		imported atomic.Int64
		mu       sync.Mutex
		failures []importFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() {
				if bar != nil {
					bar.Add(1)
				}
			}()

			image, err := os.ReadFile(job.Path)
			if err == nil {
				err = register(gctx, job.Name, image)
			}
			if err != nil {
				// A cancelled or expired run is not a per-image failure.
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				mu.Lock()
				failures = append(failures, importFailure{Path: job.Path, Err: err})
				mu.Unlock()
				return nil
			}
			imported.Add(1)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	return imported.Load(), failures, err
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	jobs, err := collectImportJobs(args[0])
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No images found")
		return nil
	}

	if mustGetBool(cmd, "dry-run") {
		for _, job := range jobs {
			fmt.Fprintf(out, "%s\t%s\n", job.Name, job.Path)
		}
		fmt.Fprintf(out, "\n%d images would be imported\n", len(jobs))
		return nil
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetDescription("Importing faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	register := func(ctx context.Context, name string, image []byte) error {
		_, err := a.svc.Register(ctx, name, image)
		return err
	}

	imported, failures, err := runImportJobs(ctx, jobs, mustGetInt(cmd, "workers"), register, bar)
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("import interrupted after %d images: %w", imported, err)
	}

	fmt.Fprintf(out, "Imported %d of %d images\n", imported, len(jobs))
	if len(failures) > 0 {
		fmt.Fprintf(out, "Skipped %d:\n", len(failures))
		for _, f := range failures {
			fmt.Fprintf(out, "  %s: %v\n", f.Path, f.Err)
		}
	}
	return nil
}
