package main

import (
	"punish-engine/app"
	"punish-engine/config"
	"punish-engine/utils"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(logrus.StandardLogger())
	if err != nil {
		logrus.Fatalf("Error loading config: %v", err)
	}
	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatalf("Error creating punishment engine: %v", err)
	}
	defer a.Close()

	if err := a.Run(); err != nil {
		log.WithError(err).Error("Punishment engine stopped")
	}
}
