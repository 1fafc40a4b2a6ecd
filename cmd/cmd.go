package cmd

import (
	"github.com/spf13/cobra"

	"github.com/parget/parget/cmd/root"
	"github.com/parget/parget/cmd/version"
)

func GetRootCommand() *cobra.Command {
	rootCMD := root.GetCommand()
	rootCMD.AddCommand(version.VersionCMD)
	return rootCMD
}
