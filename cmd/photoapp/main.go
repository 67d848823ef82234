package main

import (
	"log"

	"github.com/patric-chuzhbe/photoapp/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		log.Fatal(err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		log.Fatal(err)
	}
}
