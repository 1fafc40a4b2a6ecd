package main

import (
	"os"

	"github.com/parget/parget/cmd"
	"github.com/parget/parget/pkg/logging"
)

func main() {
	logging.SetupLogger()
	rootCMD := cmd.GetRootCommand()

	if err := rootCMD.Execute(); err != nil {
		os.Exit(1)
	}
}
