// CLI for offline audio analysis: onsets, tempo, and song structure.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gordo-v1su4/samplerista-engine/analysis"
	"github.com/gordo-v1su4/samplerista-engine/logging"
	"github.com/gordo-v1su4/samplerista-engine/transcode"
)

// fileConfig is the YAML shape of --config
type fileConfig struct {
	Analysis  analysis.Config          `yaml:"analysis"`
	Onsets    analysis.OnsetParams     `yaml:"onsets"`
	Structure analysis.StructureParams `yaml:"structure"`
}

// analysisReport is the JSON output of the analyze command
type analysisReport struct {
	File      string                        `json:"file"`
	Duration  float64                       `json:"duration"`
	BPM       *analysis.BPMResult           `json:"bpm"`
	Onsets    *analysis.OnsetResult         `json:"onsets"`
	Slices    []analysis.Slice              `json:"slices"`
	Structure *analysis.SongStructureResult `json:"structure,omitempty"`
}

var rootCmd = &cobra.Command{
	Use:   "samplerista",
	Short: "Offline audio analysis for the sampler: onsets, BPM, song structure",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze an audio file and print a JSON report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, args[0])
	},
}

func init() {
	analyzeCmd.Flags().Float64("sensitivity", 0.5, "Onset sensitivity in [0,1]; higher finds more onsets")
	analyzeCmd.Flags().Float64("min-distance", 0.05, "Minimum onset spacing in seconds")
	analyzeCmd.Flags().Int("max-sections", 8, "Maximum number of labeled sections")
	analyzeCmd.Flags().Float64("min-section-duration", 5.0, "Minimum section length in seconds")
	analyzeCmd.Flags().Bool("structure", true, "Run song structure segmentation")
	analyzeCmd.Flags().String("config", "", "YAML config file overriding analysis parameters")
	analyzeCmd.Flags().StringP("output", "o", "", "Write the JSON report to a file instead of stdout")
	analyzeCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, path string) error {
	flags := cmd.Flags()

	if verbose, _ := flags.GetBool("verbose"); verbose {
		logging.SetLevel(logging.DebugLevel)
	}

	cfg := fileConfig{
		Analysis:  analysis.DefaultConfig(),
		Onsets:    analysis.DefaultOnsetParams(),
		Structure: analysis.DefaultStructureParams(),
	}
	if configPath, _ := flags.GetString("config"); configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}

	// Flags set explicitly win over the config file
	if flags.Changed("sensitivity") {
		cfg.Onsets.Sensitivity, _ = flags.GetFloat64("sensitivity")
	}
	if flags.Changed("min-distance") {
		cfg.Onsets.MinDistance, _ = flags.GetFloat64("min-distance")
	}
	if flags.Changed("max-sections") {
		cfg.Structure.MaxSections, _ = flags.GetInt("max-sections")
	}
	if flags.Changed("min-section-duration") {
		cfg.Structure.MinSectionDuration, _ = flags.GetFloat64("min-section-duration")
	}

	audio, err := transcode.LoadMono(path)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	buf, err := analysis.NewSampleBuffer(audio.Samples, audio.SampleRate)
	if err != nil {
		return err
	}

	ctx := context.Background()
	engine := analysis.NewEngine(cfg.Analysis)
	if err := engine.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	defer engine.Cleanup()

	logging.Info("analyzing", logging.Fields{
		"file":        path,
		"duration":    fmt.Sprintf("%.1fs", buf.Duration()),
		"sample_rate": buf.SampleRate(),
	})

	cfg.Onsets.OnProgress = progressLogger("onsets")
	onsets, err := engine.DetectOnsets(ctx, buf, cfg.Onsets)
	if err != nil {
		return fmt.Errorf("onset detection: %w", err)
	}

	bpm, err := engine.DetectBPM(ctx, buf)
	if err != nil {
		return fmt.Errorf("tempo estimation: %w", err)
	}

	report := &analysisReport{
		File:     path,
		Duration: buf.Duration(),
		BPM:      bpm,
		Onsets:   onsets,
		Slices:   analysis.BuildSlices(buf, onsets, cfg.Analysis.MaxSlices),
	}

	if withStructure, _ := flags.GetBool("structure"); withStructure {
		cfg.Structure.OnProgress = progressLogger("structure")
		structure, err := engine.DetectSongStructure(ctx, buf, cfg.Structure)
		if err != nil {
			return fmt.Errorf("structure detection: %w", err)
		}
		report.Structure = structure
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	if outputPath, _ := flags.GetString("output"); outputPath != "" {
		return os.WriteFile(outputPath, append(out, '\n'), 0o644)
	}

	fmt.Println(string(out))
	return nil
}

// progressLogger logs analysis progress at ~10% steps
func progressLogger(stage string) analysis.ProgressFunc {
	lastDecile := -1
	return func(progress float64) {
		decile := int(progress * 10)
		if decile > lastDecile {
			lastDecile = decile
			logging.Debug("progress", logging.Fields{
				"stage":    stage,
				"progress": fmt.Sprintf("%.0f%%", progress*100),
			})
		}
	}
}
