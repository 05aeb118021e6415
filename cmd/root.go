package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dBind/cmd/bind"
	"github.com/ValentinKolb/dBind/cmd/serve"
	"github.com/ValentinKolb/dBind/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dbind",
		Short: "device binding registration service",
		Long: fmt.Sprintf(`dBind (v%s)

A registration service that binds push channel ids (GCM registration ids)
to users. A binding is created pending, confirmed with a one-time code and
can later be moved to a new channel id or removed. Bindings are kept in a
sharded record store that is optionally replicated with RAFT.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dBind",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dBind v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper before every command
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(bind.BindCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer of the RPC endpoint (json, binary, gob), server and clients must agree"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix). The JSON gateway and /metrics are only served by http"))
	key = "config"
	RootCmd.PersistentFlags().String(key, "", util.WrapString("optional config file (yaml, toml or json) with the same keys as the flags"))

	cobra.CheckErr(viper.BindPFlags(RootCmd.PersistentFlags()))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
