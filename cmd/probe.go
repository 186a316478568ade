package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gregm123456/picker/internal/journal"
)

func newProbeCmd() *cobra.Command {
	var flagEvents int

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Open the panel, report its geometry, and dump recent journal events",
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := openDeviceFunc()()
			if err != nil {
				return err
			}
			bounds := dev.Bounds()
			log.Info().
				Int("width", bounds.Dx()).
				Int("height", bounds.Dy()).
				Msg("panel reachable")
			if err := dev.Close(); err != nil {
				log.Warn().Err(err).Msg("close panel")
			}

			path, err := journal.ResolvePath()
			if err != nil {
				return err
			}
			store, err := journal.Open(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("journal unavailable")
				return nil
			}
			defer store.Close()

			events, err := store.Recent(flagEvents)
			if err != nil {
				return err
			}
			log.Info().Str("path", path).Int("count", len(events)).Msg("recent display events")
			for _, ev := range events {
				log.Info().
					Time("at", ev.At).
					Str("kind", ev.Kind).
					Str("tag", ev.Tag).
					Str("detail", ev.Detail).
					Dur("elapsed", ev.Elapsed).
					Msg("event")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&flagEvents, "events", 20, "Number of recent journal events to show")
	return cmd
}
