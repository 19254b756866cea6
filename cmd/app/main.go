// CLI for track analysis and the upload server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nzoschke/musicagent/pkg/analysis"
	"github.com/nzoschke/musicagent/pkg/audio"
	"github.com/nzoschke/musicagent/pkg/classify"
	"github.com/nzoschke/musicagent/pkg/config"
	"github.com/nzoschke/musicagent/pkg/corpus"
	"github.com/nzoschke/musicagent/pkg/logging"
	"github.com/nzoschke/musicagent/pkg/server"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config
	log = logging.Zone("app")
)

var rootCmd = &cobra.Command{
	Use:           "app",
	Short:         "Music analysis agent",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|directory>",
	Short: "Analyze an audio file, or create JSON sidecars for a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		asJSON, _ := cmd.Flags().GetBool("json")
		return runAnalyze(cmd.Context(), args[0], force, asJSON)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload and music server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		return runServe(cmd.Context())
	},
}

var genresCmd = &cobra.Command{
	Use:   "genres",
	Short: "List genre profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenres()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective config as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfig(cmd.OutOrStdout())
	},
}

var synthCmd = &cobra.Command{
	Use:   "synth <out.wav>",
	Short: "Write a sine test tone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		freq, _ := cmd.Flags().GetFloat64("freq")
		seconds, _ := cmd.Flags().GetFloat64("seconds")
		rate, _ := cmd.Flags().GetInt("rate")
		amp, _ := cmd.Flags().GetFloat64("amplitude")
		return runSynth(args[0], freq, amp, seconds, rate)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("corpus", "", "Reference corpus CSV (overrides config)")
	pf.String("model", "", "Model path (overrides config, empty uses rules)")
	pf.String("model-kind", "", "Model kind: feedforward, tensorflow or onnx")
	pf.String("log-level", "", "Log level (overrides config)")

	analyzeCmd.Flags().BoolP("force", "f", false, "Force re-analysis even if JSON exists")
	analyzeCmd.Flags().Bool("json", false, "Print the full result as JSON")
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	synthCmd.Flags().Float64("freq", 440, "Tone frequency in Hz")
	synthCmd.Flags().Float64("amplitude", 0.5, "Peak amplitude in [0, 1]")
	synthCmd.Flags().Float64("seconds", 5, "Duration in seconds")
	synthCmd.Flags().Int("rate", 44100, "Sample rate in Hz")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(genresCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"corpus", &c.Corpus.Path},
		{"model", &c.Model.Path},
		{"model-kind", &c.Model.Kind},
		{"log-level", &c.Log.Level},
	}
	for _, o := range overrides {
		if cmd.Flags().Changed(o.flag) {
			*o.dst, _ = cmd.Flags().GetString(o.flag)
		}
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := logging.Setup(c.Log.Level, c.Log.Format, os.Stderr); err != nil {
		return err
	}
	cfg = c
	return nil
}

// agentOptions loads the shared corpus and model. The returned func releases
// the model.
func agentOptions() (analysis.Options, func(), error) {
	tracks, stats, err := corpus.LoadFile(cfg.Corpus.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.WithField("path", cfg.Corpus.Path).Warn("corpus not found, similarity ranking disabled")
	case err != nil:
		return analysis.Options{}, nil, err
	default:
		log.WithField("path", cfg.Corpus.Path).
			WithField("loaded", stats.Loaded).
			WithField("skipped", stats.Skipped).
			Info("loaded corpus")
	}

	model, err := classify.Open(cfg.Model.Kind, cfg.Model.Path)
	if err != nil {
		return analysis.Options{}, nil, fmt.Errorf("open model: %w", err)
	}
	if model == nil {
		log.Info("no model configured, using rule based classification")
	} else {
		log.WithField("kind", cfg.Model.Kind).WithField("path", cfg.Model.Path).Info("loaded model")
	}

	release := func() {
		if err := classify.CloseModel(model); err != nil {
			log.WithError(err).Warn("close model")
		}
	}
	return analysis.Options{Corpus: tracks, Model: model}, release, nil
}

func runAnalyze(ctx context.Context, path string, force, asJSON bool) error {
	opts, release, err := agentOptions()
	if err != nil {
		return err
	}
	defer release()
	agent := analysis.New(opts)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		start := time.Now()
		stats, err := analysis.AnalyzeDir(ctx, agent, path, force)
		if err != nil {
			return err
		}
		fmt.Printf("Analyzed %d, skipped %d, failed %d in %s\n",
			stats.Analyzed, stats.Skipped, stats.Failed, time.Since(start).Round(time.Millisecond))
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := agent.Run(ctx, filepath.Base(path), data, func(s analysis.State) {
		if s != analysis.StateIdle && s != analysis.StateError {
			fmt.Fprintln(os.Stderr, analysis.StateMessage(s))
		}
	})
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printSummary(res)
	return nil
}

func printSummary(res *analysis.Result) {
	d := res.Characteristics
	fmt.Printf("%s (%.1fs @ %d Hz)\n", res.File, res.Duration, res.SampleRate)
	fmt.Printf("  Genre: %s / %s (%d%%)\n", res.Genre, res.Subgenre, res.Confidence)
	fmt.Printf("  Tempo=%.1f Energy=%.2f Danceability=%.2f Valence=%.2f Acousticness=%.2f Loudness=%.1fdB\n",
		d.Tempo, d.Energy, d.Danceability, d.Valence, d.Acousticness, d.Loudness)
	fmt.Printf("  Commercial=%d/10 Production=%d/10 Viral=%d/10\n",
		res.CommercialScore, res.ProductionScore, res.ViralPotential)
	fmt.Printf("  Vibe: %s\n", res.Vibe)
	if len(res.PlaylistFit) > 0 {
		fmt.Printf("  Playlists: %s\n", strings.Join(res.PlaylistFit, ", "))
	}
	for _, m := range res.Similar[:min(3, len(res.Similar))] {
		fmt.Printf("  Similar: %s - %s (%.1f)\n", m.Track.Artist, m.Track.Song, m.Score)
	}
	for _, k := range res.KeyInsights {
		fmt.Printf("  %s\n", k)
	}
	fmt.Printf("  %s\n", res.Prediction)
}

func runServe(ctx context.Context) error {
	opts, release, err := agentOptions()
	if err != nil {
		return err
	}
	defer release()

	s := server.New(server.Config{
		Addr:      cfg.Server.Addr,
		MusicDir:  cfg.Server.MusicDir,
		BodyLimit: cfg.Server.BodyLimit,
	}, opts)

	errc := make(chan error, 1)
	go func() { errc <- s.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func runGenres() error {
	for _, p := range classify.Profiles() {
		fmt.Printf("%-18s tempo %3.0f-%3.0f", p.Genre, p.Tempo.Min, p.Tempo.Max)
		for _, t := range []struct {
			name string
			v    *float64
		}{
			{"energy", p.Energy},
			{"danceability", p.Danceability},
			{"valence", p.Valence},
			{"acousticness", p.Acousticness},
			{"speechiness", p.Speechiness},
			{"instrumentalness", p.Instrumentalness},
			{"loudness", p.Loudness},
		} {
			if t.v != nil {
				fmt.Printf("  %s=%g", t.name, *t.v)
			}
		}
		fmt.Println()
	}
	return nil
}

func runConfig(w io.Writer) error {
	return cfg.Write(w)
}

func runSynth(path string, freq, amplitude, seconds float64, rate int) error {
	if freq <= 0 || seconds <= 0 || rate <= 0 {
		return fmt.Errorf("freq, seconds and rate must be positive")
	}
	if err := audio.WriteWAV(path, audio.Tone(freq, amplitude, seconds, rate), rate); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%.1fs %gHz @ %d Hz)\n", path, seconds, freq, rate)
	return nil
}
