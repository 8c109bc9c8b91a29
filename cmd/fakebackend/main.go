package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/buildinfo"
	"github.com/dmitrijs2005/fieldsync/internal/fakebackend"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/gin-gonic/gin"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := fakebackend.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	logger := logging.New(cfg.LogLevel, "json", os.Stdout)

	app, err := fakebackend.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}
