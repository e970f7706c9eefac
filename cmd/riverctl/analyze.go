package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go-rivermind/internal/analyzer"
	"go-rivermind/internal/decoder"
	"go-rivermind/internal/factory"
	"go-rivermind/internal/logger"
	"go-rivermind/internal/session"
	"go-rivermind/internal/smoother"
	"go-rivermind/pkg/models"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// AnalyzeOptions configures the analyze command
type AnalyzeOptions struct {
	Stride       int
	MaxFrames    int
	Workers      int
	AnalyzerType string
	PerFrame     bool
	NoProgress   bool
}

var analyzeOpts AnalyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze <video | image...>",
	Short: "Run footage through the pipeline and print the smoothed readings",
	Long: "Analyze a single video file, or a sequence of still frames in the order given. " +
		"Frames share one session so flow is measured between consecutive inputs.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, args, analyzeOpts)
	},
}

func init() {
	analyzeCmd.Flags().IntVarP(&analyzeOpts.Stride, "stride", "n", 1, "Analyze every nth video frame")
	analyzeCmd.Flags().IntVarP(&analyzeOpts.MaxFrames, "max-frames", "m", 300, "Stop after this many analyzed frames (0 for no limit)")
	analyzeCmd.Flags().IntVarP(&analyzeOpts.Workers, "workers", "w", 0, "Kernel worker count (0 uses every CPU)")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.AnalyzerType, "analyzer", "a", string(factory.StandardAnalyzer), "Analyzer type: standard, fast, still, flow")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.PerFrame, "frames", false, "Print one JSON line per frame instead of the summary")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.NoProgress, "no-progress", false, "Disable the progress bar")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string, opts AnalyzeOptions) error {
	if opts.Stride < 1 {
		return fmt.Errorf("--stride must be at least 1, got %d", opts.Stride)
	}
	if opts.MaxFrames < 0 {
		return fmt.Errorf("--max-frames must not be negative, got %d", opts.MaxFrames)
	}

	fa, err := factory.NewAnalyzerFactory(opts.Workers).CreateAnalyzer(factory.AnalyzerType(opts.AnalyzerType))
	if err != nil {
		return err
	}
	defer fa.Close()

	sess := session.New(uuid.New().String(), fa, smoother.DefaultCapacity)
	out := cmd.OutOrStdout()
	start := time.Now()

	emit := func(res session.Result) error {
		logger.WithFrame(sess.ID, res.FrameIndex).WithFields(logrus.Fields{
			"flow":    res.Flow,
			"emotion": res.Emotion,
		}).Debug("Frame analysed")
		if !opts.PerFrame {
			return nil
		}
		return writeJSONLine(out, res)
	}

	var frames int
	if len(args) == 1 && decoder.IsVideoFile(args[0]) {
		frames, err = analyzeVideo(cmd, args[0], sess, opts, emit)
	} else {
		frames, err = analyzeImages(args, sess, opts, emit)
	}
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"frames":     frames,
		"duration":   time.Since(start),
	}).Info("Analysis completed")

	if opts.PerFrame {
		return nil
	}
	return writeJSON(out, summarize(sess.Current(), frames, time.Since(start)))
}

func analyzeVideo(cmd *cobra.Command, path string, sess *session.Session, opts AnalyzeOptions, emit func(session.Result) error) (int, error) {
	src, err := decoder.OpenVideo(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	bar := newProgressBar(expectedFrames(src, opts), "Analyzing frames", opts.NoProgress)
	defer bar.Finish()

	sampleOpts := decoder.SampleOptions{Stride: opts.Stride, MaxFrames: opts.MaxFrames}
	return decoder.Sample(cmd.Context(), src, sampleOpts, func(_ int, frame *analyzer.Frame) error {
		res, err := sess.Analyze(frame)
		if err != nil {
			return err
		}
		bar.Add(1)
		return emit(res)
	})
}

func analyzeImages(paths []string, sess *session.Session, opts AnalyzeOptions, emit func(session.Result) error) (int, error) {
	limit := len(paths)
	if opts.MaxFrames > 0 && opts.MaxFrames < limit {
		limit = opts.MaxFrames
	}

	bar := newProgressBar(limit, "Analyzing images", opts.NoProgress)
	defer bar.Finish()

	for i, path := range paths[:limit] {
		frame, err := decodeFile(path)
		if err != nil {
			return i, fmt.Errorf("%s: %w", path, err)
		}
		res, err := sess.Analyze(frame)
		if err != nil {
			return i, fmt.Errorf("%s: %w", path, err)
		}
		bar.Add(1)
		if err := emit(res); err != nil {
			return i, err
		}
	}
	return limit, nil
}

func decodeFile(path string) (*analyzer.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	frame, _, err := decoder.DecodeImageReader(f)
	return frame, err
}

// expectedFrames estimates how many frames Sample will keep, or -1 if unknown
func expectedFrames(src decoder.FrameSource, opts AnalyzeOptions) int {
	vr, ok := src.(*decoder.VideoReader)
	if !ok {
		return cappedTotal(-1, opts)
	}
	return cappedTotal(vr.FrameCount(), opts)
}

func cappedTotal(total int, opts AnalyzeOptions) int {
	if total > 0 && opts.Stride > 1 {
		total = (total + opts.Stride - 1) / opts.Stride
	}
	if opts.MaxFrames > 0 && (total < 0 || total > opts.MaxFrames) {
		total = opts.MaxFrames
	}
	return total
}

func newProgressBar(total int, description string, disabled bool) *progressbar.ProgressBar {
	writer := io.Writer(os.Stderr)
	if disabled {
		writer = io.Discard
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(writer),
		progressbar.OptionShowCount(),
	)
}

func summarize(rec session.Record, frames int, elapsed time.Duration) models.VideoAnalysisResponse {
	return models.VideoAnalysisResponse{
		Temperature:       rec.Temperature,
		PH:                rec.PH,
		Flow:              rec.Flow,
		Emotion:           string(rec.Emotion),
		FramesAnalyzed:    frames,
		ProcessingTimeSec: elapsed.Seconds(),
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONLine(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}
