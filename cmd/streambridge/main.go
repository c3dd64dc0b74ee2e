package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gordonklaus/portaudio"
)

func main() {
	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("failed to initialize portaudio: %v", err)
	}
	defer portaudio.Terminate()

	app, err := NewApp()
	if err != nil {
		log.Fatalf("failed to build application: %v", err)
	}

	if err := app.Start(); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	doneCh := make(chan struct{})
	go func() {
		app.Wait()
		close(doneCh)
	}()

	select {
	case sig := <-sigChan:
		log.Printf("received exit signal: %v", sig)
	case <-doneCh:
		log.Println("application terminated voluntarily")
	}

	if err := app.Stop(); err != nil {
		log.Printf("failed to shut down application: %v", err)
		os.Exit(1)
	}
}
