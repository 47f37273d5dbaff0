package cmd

import "github.com/spf13/cobra"

// extraCommands holds constructors registered by build-tagged files.
var extraCommands []func() *cobra.Command

// Commands returns every subcommand available in this build.
func Commands() []*cobra.Command {
	cmds := []*cobra.Command{
		CreateDevicesCmd(),
		CreateFormatsCmd(),
		CreateCaptureCmd(),
		CreateControlCmd(),
	}
	for _, create := range extraCommands {
		cmds = append(cmds, create())
	}
	return cmds
}
