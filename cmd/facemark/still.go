package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/esimov/facemark"
	"github.com/esimov/facemark/canvas"
	"github.com/esimov/facemark/internal/logging"
	"github.com/esimov/facemark/utils"
)

// maxWorkers sets the maximum number of concurrently processed files.
const maxWorkers = 20

type stillOptions struct {
	workers int
	quality int
	trace   bool
}

func newStillCmd() *cobra.Command {
	opts := &stillOptions{}

	cmd := &cobra.Command{
		Use:   "still <source> [destination]",
		Short: "Annotate the faces found on an image, a URL or a directory of images",
		Long: `Detect faces on still images and draw their bounding box, score and keypoints.

The source can be a local image, an image URL, a directory or "-" to read the
image from stdin. The destination defaults to "<name>_facemark<ext>" next to the
source, to "<dir>_facemark" for directories and to stdout for "-".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			dst := ""
			if len(args) > 1 {
				dst = args[1]
			}
			return runStill(cmd.Context(), src, dst, opts)
		},
	}

	cmd.Flags().IntVar(&opts.workers, "conc", runtime.NumCPU(), "Number of files to process concurrently")
	cmd.Flags().IntVar(&opts.quality, "quality", 0, "JPEG quality of the output (defaults to JPEG_QUALITY)")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Print the drawing operations of every image to stderr")

	return cmd
}

func runStill(ctx context.Context, src, dst string, opts *stillOptions) error {
	logger := logging.NewComponentLogger("still")
	if opts.quality <= 0 {
		opts.quality = cfg.JPEGQuality
	}

	sess, err := newSession(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	spinner := utils.NewSpinner(
		utils.StatusLine("loading the face detector...", "", utils.DefaultMessage),
		200*time.Millisecond, true,
	)
	if _, err := sess.CreateDetector(ctx, spinner.Progress); err != nil {
		spinner.Stop()
		return err
	}

	if utils.IsValidUrl(src) {
		tmp, err := utils.DownloadImage(ctx, src)
		if tmp != nil {
			defer os.Remove(tmp.Name())
			defer tmp.Close()
		}
		if err != nil {
			return errors.Wrap(err, "failed to download the source image")
		}
		if dst == "" {
			dst = destinationFor(urlBase(src), false)
		}
		return annotateFile(ctx, sess, tmp.Name(), dst, opts)
	}

	if src == pipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("`-` should be used with a pipe for stdin")
		}
		if dst == "" {
			dst = pipeName
		}
		img, err := utils.DecodeReader(os.Stdin)
		if err != nil {
			return err
		}
		return annotateTo(ctx, sess, img, dst, opts)
	}

	fi, err := os.Stat(src)
	if err != nil {
		return errors.Wrap(err, "failed to load the source image")
	}
	if dst == "" {
		dst = destinationFor(src, fi.IsDir())
	}
	if fi.IsDir() {
		return annotateDir(ctx, sess, src, dst, opts)
	}
	return annotateFile(ctx, sess, src, dst, opts)
}

// annotateFile annotates a single image file and prints its status line.
func annotateFile(ctx context.Context, sess *facemark.Session, src, dst string, opts *stillOptions) error {
	start := time.Now()

	img, err := utils.DecodeImage(src)
	if err != nil {
		return err
	}
	if err := annotateTo(ctx, sess, img, dst, opts); err != nil {
		return err
	}

	if dst != pipeName {
		fmt.Fprintln(os.Stderr, utils.StatusLine(
			fmt.Sprintf("%s annotated in %s", filepath.Base(dst), utils.FormatTime(time.Since(start))),
			"✔", utils.SuccessMessage,
		))
	}
	return nil
}

// annotateDir annotates every image found under src, mirroring the directory
// layout into dst.
func annotateDir(ctx context.Context, sess *facemark.Session, src, dst string, opts *stillOptions) error {
	files, err := collectImages(src)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no images found in %s", src)
	}

	workers := opts.workers
	if workers <= 0 || workers > maxWorkers {
		workers = runtime.NumCPU()
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription(utils.Banner+" annotating"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var failed atomic.Int64
	logger := logging.NewComponentLogger("still")
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			defer bar.Add(1)

			rel, err := filepath.Rel(src, path)
			if err != nil {
				return err
			}
			out := filepath.Join(dst, rel)
			out = strings.TrimSuffix(out, filepath.Ext(out)) + encodableExt(filepath.Ext(out))
			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				return err
			}

			img, err := utils.DecodeImage(path)
			if err == nil {
				err = annotateTo(ctx, sess, img, out, opts)
			}
			if err != nil {
				failed.Add(1)
				logger.Error().Err(err).Str("file", path).Msg("Failed to annotate image")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	msg, mark, typ := "images annotated", "✔", utils.SuccessMessage
	if n := failed.Load(); n > 0 {
		msg, mark, typ = fmt.Sprintf("images annotated, %d failed", n), "✘", utils.ErrorMessage
	}
	fmt.Fprintln(os.Stderr, utils.StatusLine(
		fmt.Sprintf("%d %s in %s", len(files)-int(failed.Load()), msg, utils.FormatTime(time.Since(start))),
		mark, typ,
	))
	return nil
}

// annotateTo draws the detections over img and writes the result to dst.
func annotateTo(ctx context.Context, sess *facemark.Session, img image.Image, dst string, opts *stillOptions) error {
	var trace io.Writer
	if opts.trace {
		trace = os.Stderr
	}
	out, err := annotate(ctx, sess, img, trace)
	if err != nil {
		return err
	}

	if dst == pipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
		return utils.EncodeImage(os.Stdout, out, opts.quality)
	}

	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "unable to create the output file")
	}
	if err := utils.EncodeImage(f, out, opts.quality); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// annotate runs the still detection over img. When trace is not nil the
// drawing operations are printed to it.
func annotate(ctx context.Context, sess *facemark.Session, img image.Image, trace io.Writer) (image.Image, error) {
	cv := canvas.NewFromImage(img)

	var (
		surface facemark.Surface = cv
		rec     *facemark.Recorder
	)
	if trace != nil {
		rec = facemark.NewRecorder()
		surface = facemark.Tee(cv, rec)
	}

	if err := sess.DetectStill(ctx, img, surface, nil); err != nil {
		return nil, err
	}
	if rec != nil {
		fmt.Fprintln(trace, rec.String())
	}
	return cv.Snapshot(), nil
}

// collectImages walks dir and returns the files with a supported extension.
func collectImages(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && utils.IsValidExtension(filepath.Ext(path)) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// destinationFor derives the default output location of src.
func destinationFor(src string, dir bool) string {
	clean := filepath.Clean(src)
	if dir {
		return clean + "_facemark"
	}
	ext := filepath.Ext(clean)
	return strings.TrimSuffix(clean, ext) + "_facemark" + encodableExt(ext)
}

// encodableExt maps ext onto an extension utils.EncodeImage can write.
func encodableExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return ext
	case ".gif":
		return ".png"
	}
	return ".jpg"
}

// urlBase returns the last path element of an image URL.
func urlBase(uri string) string {
	uri = strings.SplitN(uri, "?", 2)[0]
	base := uri[strings.LastIndex(uri, "/")+1:]
	if base == "" {
		return "image"
	}
	return base
}
