package main

import (
	"log"

	"github.com/fleetsense/fleettrack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
