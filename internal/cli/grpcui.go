package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codexec/codexec/internal/config"
)

var grpcuiCmd = &cobra.Command{
	Use:   "grpcui",
	Short: "Print the configured introspection UI address",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		addrs := config.NewAddresses(cfg)
		fmt.Printf("Introspection UI configured at http://%s\n", addrs.GrpcUIAddr())
	},
}

func init() {
	RootCmd.AddCommand(grpcuiCmd)
}
