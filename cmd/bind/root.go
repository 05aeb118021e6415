package bind

import (
	"github.com/ValentinKolb/dBind/cmd/util"
	"github.com/ValentinKolb/dBind/lib/binding"
	"github.com/spf13/cobra"
)

var (
	bindClient binding.IService

	// BindCommands represents the binding command group
	BindCommands = &cobra.Command{
		Use:               "bind",
		Short:             "Perform binding operations against a dBind server",
		PersistentPreRunE: setupBindClient,
	}
)

func init() {
	// Add common RPC flags to the bind command
	util.SetupRPCClientFlags(BindCommands)

	// Add subcommands
	BindCommands.AddCommand(newCmd)
	BindCommands.AddCommand(verifyCmd)
	BindCommands.AddCommand(updateCmd)
	BindCommands.AddCommand(delCmd)
	BindCommands.AddCommand(queryCmd)
	BindCommands.AddCommand(perfTestCmd)
}

// setupBindClient initializes the RPC binding client
func setupBindClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	c, err := util.NewClient()
	if err != nil {
		return err
	}
	bindClient = c
	return nil
}
