package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for deltanode
var RootCmd = &cobra.Command{
	Use:              "deltanode",
	Short:            "delta consensus node",
	TraverseChildren: true,
}
