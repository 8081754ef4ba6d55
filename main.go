package main

import (
	"github.com/BioHazard786/pairlink/cmd"
	"github.com/BioHazard786/pairlink/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
