package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Blank the panel to white and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := openDeviceFunc()()
			if err != nil {
				return err
			}
			defer dev.Close()
			if err := dev.Clear(); err != nil {
				return err
			}
			log.Info().Msg("panel cleared")
			return nil
		},
	}
}
