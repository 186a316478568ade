package main

import (
	"os"

	"github.com/gregm123456/picker/internal/env"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "picker",
	Short: "Knob-driven e-paper picker",
	Long: `picker drives an IT8951 e-paper panel from a bank of potentiometers:
knob turns flash selection overlays, GO generates an image from the current
selections through a Stable Diffusion web UI, and the display pipeline
coalesces updates and self-heals from hung hardware.`,
}

var (
	rootSimulate bool
	rootSimDir   string
)

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	rootCmd.PersistentFlags().BoolVar(&rootSimulate, "simulate", false, "Use the PNG-writing simulated display instead of real hardware")
	rootCmd.PersistentFlags().StringVar(&rootSimDir, "sim-dir", "", "Output directory for simulated display frames")
	rootCmd.AddCommand(
		newRunCmd(),
		newClearCmd(),
		newProbeCmd(),
		newResetCmd(),
		newGenerateCmd(),
	)
	_ = env.Ensure()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("picker command failed")
	}
}
