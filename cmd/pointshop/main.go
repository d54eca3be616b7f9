// Command pointshop runs the points storefront Telegram bot.
package main

import (
	"context"
	"log"

	"github.com/m3rciful/pointshop/core/cmd"
	"github.com/m3rciful/pointshop/internal/app"
	"github.com/m3rciful/pointshop/internal/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		Name:              "pointshop",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			return app.Bootstrap(context.Background(), cfg.(*config.Config))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
