package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/calegray/concepthub-backend/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	application.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		application.Log.Info("Shutting down...")
		application.Close()
		os.Exit(0)
	}()

	addr := ":" + application.Cfg.Port
	application.Log.Info("Starting server", "addr", addr)
	if err := application.Run(addr); err != nil {
		application.Log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
