package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/wakevault/internal/buildinfo"
	"github.com/dmitrijs2005/wakevault/internal/server"
	"github.com/dmitrijs2005/wakevault/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := server.NewApp(ctx, cfg, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
