package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("meltdown exited")
		os.Exit(1)
	}
}
