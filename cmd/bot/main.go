package main

import (
	"log"

	"github.com/joho/godotenv"

	corecmd "github.com/m3rciful/pricewatch/core/cmd"
	"github.com/m3rciful/pricewatch/core/logger"
	"github.com/m3rciful/pricewatch/internal/bot"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "configs/bot.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			botCfg := cfg.(*bot.Config)
			if err := logger.Init(botCfg.CoreConfig()); err != nil {
				return nil, err
			}
			return bot.NewApp(botCfg)
		},
	})
	if err != nil {
		log.Fatalf("bot exited: %v", err)
	}
}
