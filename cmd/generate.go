package main

import (
	"image"
	"image/png"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	picker "github.com/gregm123456/picker"
	"github.com/gregm123456/picker/internal/config"
)

// newGenerateCmd generates one image from a prompt and either saves it or
// paints it on the panel. Useful for tuning the SD parameters without
// touching the knobs.
func newGenerateCmd() *cobra.Command {
	var (
		flagPrompt  string
		flagSDURL   string
		flagOut     string
		flagDisplay bool
		flagGamma   float64
		flagRotate  string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a single image from a prompt via the SD web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := firstNonEmpty(flagSDURL, config.String("SD_URL", ""))
			if baseURL == "" {
				return errors.New("--sd-url or PICKER_SD_URL must be provided")
			}
			client, err := picker.NewSDClient(picker.SDConfig{
				BaseURL:        baseURL,
				PromptPrefix:   config.String("PROMPT_PREFIX", ""),
				PromptSuffix:   config.String("PROMPT_SUFFIX", ""),
				NegativePrompt: config.String("NEGATIVE_PROMPT", ""),
			})
			if err != nil {
				return err
			}

			log.Info().Str("prompt", flagPrompt).Msg("generating")
			img, err := client.Txt2Img(cmd.Context(), flagPrompt)
			if err != nil {
				return err
			}

			if flagOut != "" {
				f, err := os.Create(flagOut)
				if err != nil {
					return errors.Wrap(err, "create output file")
				}
				defer f.Close()
				if err := png.Encode(f, img); err != nil {
					return errors.Wrap(err, "encode output file")
				}
				log.Info().Str("path", flagOut).Msg("image saved")
			}

			if !flagDisplay {
				return nil
			}
			rotation, err := picker.ParseRotation(firstNonEmpty(flagRotate, config.String("ROTATE", "CW")))
			if err != nil {
				return err
			}
			dev, err := openDeviceFunc()()
			if err != nil {
				return err
			}
			defer dev.Close()
			bounds := dev.Bounds()
			if rotation == picker.RotateCW || rotation == picker.RotateCCW {
				bounds = image.Rect(0, 0, bounds.Dy(), bounds.Dx())
			}
			frame := picker.PrepareFrame(img, bounds, flagGamma)
			frame = picker.FitFrame(frame, rotation, dev.Bounds())
			return dev.DisplayImage(frame, picker.WaveformGC16, frame.Bounds())
		},
	}

	cmd.Flags().StringVar(&flagPrompt, "prompt", "", "Prompt text")
	cmd.Flags().StringVar(&flagSDURL, "sd-url", "", "Stable Diffusion web UI base URL (default from PICKER_SD_URL)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Save the generated image as PNG to this path")
	cmd.Flags().BoolVar(&flagDisplay, "display", false, "Also paint the image on the panel")
	cmd.Flags().Float64Var(&flagGamma, "gamma", 1.0, "Gamma applied before display")
	cmd.Flags().StringVar(&flagRotate, "rotate", "", "Display rotation for --display")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}
