package main

import (
	picker "github.com/gregm123456/picker"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newResetCmd runs a heavy-handed recovery sequence for a panel stuck with
// ghosting or a wedged controller: a reset flash, two full grayscale white
// paints, and a fast pass to settle the particles.
func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Force a full panel recovery sequence (clear + repeated white paints)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := openDeviceFunc()()
			if err != nil {
				return err
			}
			defer dev.Close()

			log.Info().Msg("reset: INIT clear")
			if err := dev.Clear(); err != nil {
				return err
			}
			white := picker.NewWhiteFrame(dev.Bounds())
			for i := 0; i < 2; i++ {
				log.Info().Int("pass", i+1).Msg("reset: GC16 white paint")
				if err := dev.DisplayImage(white, picker.WaveformGC16, white.Bounds()); err != nil {
					return err
				}
			}
			log.Info().Msg("reset: DU settle pass")
			if err := dev.DisplayImage(white, picker.WaveformDU, white.Bounds()); err != nil {
				return err
			}
			log.Info().Msg("panel reset complete")
			return nil
		},
	}
}
