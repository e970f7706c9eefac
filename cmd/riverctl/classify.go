package main

import (
	"go-rivermind/internal/alerts"
	"go-rivermind/internal/config"
	"go-rivermind/internal/emotion"
	"go-rivermind/internal/strategy"
	"go-rivermind/pkg/models"
	"go-rivermind/pkg/validation"

	"github.com/spf13/cobra"
)

// ReadingFlags are the explicit readings shared by classify, stress and check
type ReadingFlags struct {
	Temperature     float64
	PH              float64
	Flow            float64
	DissolvedOxygen float64
	Mode            string
}

var readingOpts ReadingFlags

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Label explicit readings with the threshold rules or the stress score",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := classifyReadings(readingOpts)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), resp)
	},
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Label explicit readings by their stress score",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := readingOpts
		opts.Mode = string(strategy.StressMode)
		resp, err := classifyReadings(opts)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), resp)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate explicit readings against the water-quality alert thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := readingOpts.readings()
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), alerts.New(nil).Evaluate(r))
	},
}

func init() {
	ref := config.Defaults().Reference
	for _, c := range []*cobra.Command{classifyCmd, stressCmd, checkCmd} {
		c.Flags().Float64VarP(&readingOpts.Temperature, "temperature", "t", ref.Temperature, "Water temperature in degrees")
		c.Flags().Float64VarP(&readingOpts.PH, "ph", "p", ref.PH, "pH")
		c.Flags().Float64VarP(&readingOpts.Flow, "flow", "f", ref.FlowRate, "Flow reading")
		c.Flags().Float64Var(&readingOpts.DissolvedOxygen, "do", ref.DissolvedOxygen, "Dissolved oxygen in mg/L")
		rootCmd.AddCommand(c)
	}
	classifyCmd.Flags().StringVarP(&readingOpts.Mode, "mode", "m", string(strategy.ThresholdMode), "Classification mode: threshold, stress")
}

func (f ReadingFlags) readings() (emotion.Readings, error) {
	if err := validation.NewReadingsValidator().Validate(f.Temperature, f.PH, f.Flow, f.DissolvedOxygen); err != nil {
		return emotion.Readings{}, err
	}
	return emotion.Readings{
		Temperature:     f.Temperature,
		PH:              f.PH,
		Flow:            f.Flow,
		DissolvedOxygen: f.DissolvedOxygen,
	}, nil
}

func classifyReadings(f ReadingFlags) (models.ClassifyResponse, error) {
	r, err := f.readings()
	if err != nil {
		return models.ClassifyResponse{}, err
	}
	s, err := strategy.ForMode(f.Mode)
	if err != nil {
		return models.ClassifyResponse{}, err
	}
	mode := f.Mode
	if mode == "" {
		mode = string(strategy.ThresholdMode)
	}
	ctx := strategy.NewClassificationContext(s)
	return models.ClassifyResponse{
		Mode:        mode,
		Strategy:    ctx.GetCurrentStrategy(),
		Emotion:     string(ctx.Execute(r)),
		StressScore: emotion.StressScore(r),
	}, nil
}
