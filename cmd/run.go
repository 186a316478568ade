package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	picker "github.com/gregm123456/picker"
	"github.com/gregm123456/picker/internal/config"
	"github.com/gregm123456/picker/internal/journal"
)

func newRunCmd() *cobra.Command {
	var (
		flagTexts     string
		flagFont      string
		flagFontSize  float64
		flagRotate    string
		flagGamma     float64
		flagSDURL     string
		flagNoJournal bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the picker: poll knobs, drive the display, handle GO/RESET",
		RunE: func(cmd *cobra.Command, args []string) error {
			rotation, err := picker.ParseRotation(firstNonEmpty(flagRotate, config.String("ROTATE", "CW")))
			if err != nil {
				return err
			}

			texts := picker.DefaultTexts()
			if path := firstNonEmpty(flagTexts, config.String("TEXTS_PATH", "")); path != "" {
				texts, err = picker.LoadTexts(path)
				if err != nil {
					return err
				}
			}

			var sink picker.EventSink
			var store *journal.Store
			if !flagNoJournal {
				path, jerr := journal.ResolvePath()
				if jerr == nil {
					store, jerr = journal.Open(path)
				}
				if jerr != nil {
					// A broken journal degrades diagnostics, not the picker.
					log.Warn().Err(jerr).Msg("event journal unavailable")
				} else {
					defer store.Close()
					sink = store
				}
			}

			pipeline, err := picker.NewPipeline(picker.PipelineConfig{
				OpenDevice:      openDeviceFunc(),
				DispatchTimeout: config.Duration("DISPATCH_TIMEOUT", 2*time.Second),
				FullTimeout:     config.Duration("FULL_TIMEOUT", 12*time.Second),
				Cooldown:        config.Duration("COOLDOWN", 5*time.Second),
				Journal:         sink,
			})
			if err != nil {
				return err
			}
			if err := pipeline.Start(); err != nil {
				return err
			}
			defer func() {
				if err := pipeline.Stop(3 * time.Second); err != nil {
					log.Warn().Err(err).Msg("display pipeline stop")
				}
			}()

			adc, err := openADC()
			if err != nil {
				return err
			}
			hw, err := picker.NewHW(picker.HWConfig{
				ADC:    adc,
				PollHz: config.Int("POLL_HZ", 80),
			})
			if err != nil {
				return err
			}

			var generator *picker.SDClient
			if baseURL := firstNonEmpty(flagSDURL, config.String("SD_URL", "")); baseURL != "" {
				generator, err = picker.NewSDClient(picker.SDConfig{
					BaseURL:        baseURL,
					PromptPrefix:   config.String("PROMPT_PREFIX", ""),
					PromptSuffix:   config.String("PROMPT_SUFFIX", ""),
					NegativePrompt: config.String("NEGATIVE_PROMPT", ""),
				})
				if err != nil {
					return err
				}
			}

			core, err := picker.NewCore(picker.CoreConfig{
				HW:        hw,
				Pipeline:  pipeline,
				Texts:     texts,
				Face:      picker.LoadFace(firstNonEmpty(flagFont, config.String("FONT_PATH", "")), flagFontSize),
				Rotation:  rotation,
				Generator: generator,
				Gamma:     flagGamma,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().
				Bool("simulate", rootSimulate).
				Str("rotate", rotation.String()).
				Bool("generator", generator != nil).
				Msg("picker up")

			group, gctx := errgroup.WithContext(ctx)
			picker.GroupGoSafe(gctx, group, "picker-core", core.Run)
			return group.Wait()
		},
	}

	cmd.Flags().StringVar(&flagTexts, "texts", "", "Path to the knob texts JSON (default from PICKER_TEXTS_PATH)")
	cmd.Flags().StringVar(&flagFont, "font", "", "Path to a TTF/OTF font (default from PICKER_FONT_PATH, falls back to a builtin face)")
	cmd.Flags().Float64Var(&flagFontSize, "font-size", 0, "Font size in points (0 = default)")
	cmd.Flags().StringVar(&flagRotate, "rotate", "", "Display rotation: NONE, CW, CCW or FLIP (default from PICKER_ROTATE)")
	cmd.Flags().Float64Var(&flagGamma, "gamma", 1.0, "Gamma applied to generated images before display")
	cmd.Flags().StringVar(&flagSDURL, "sd-url", "", "Stable Diffusion web UI base URL (default from PICKER_SD_URL; empty disables generation)")
	cmd.Flags().BoolVar(&flagNoJournal, "no-journal", false, "Disable the on-disk fault/recovery journal")

	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
