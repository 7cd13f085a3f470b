package main

import (
	"log"

	"github.com/joho/godotenv"

	"dailybread/bot"
	"dailybread/core/cmd"
	coreconfig "dailybread/core/config"
)

func main() {
	// Missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		Bootstrap: func(cfg *coreconfig.Config) (cmd.TelegramApp, error) {
			return bot.Bootstrap(cfg)
		},
	})
	if err != nil {
		log.Fatalf("bot exited: %v", err)
	}
}
