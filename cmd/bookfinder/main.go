package main

import (
	"os"

	"bookfinder/internal/config"
	"bookfinder/internal/logging"
)

func main() {
	config.LoadEnvFiles()
	cfg := config.LoadClient()
	cfg.Log.Format = config.GetEnv("LOG_FORMAT", "console")
	logging.Init(cfg.Log)

	if err := newCLI(cfg).Run(os.Args); err != nil {
		logging.Fatal().Err(err).Msg("bookfinder failed")
	}
}
