package main

import (
	"github.com/spf13/cobra"

	"github.com/iudanet/flocksync/internal/agent/state"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the front-end servers this agent has provisioned",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configFile)
		if err != nil {
			return err
		}

		store, err := state.New(cmd.Context(), cfg.GetString(cfgKeyStateDB))
		if err != nil {
			return err
		}
		defer func() {
			_ = store.Close()
		}()

		servers, err := store.ListServers(cmd.Context())
		if err != nil {
			return err
		}
		if len(servers) == 0 {
			stdio.Println("No servers provisioned")
			return nil
		}
		for _, srv := range servers {
			stdio.Printf("%s\t%s\n", srv.Name, srv.URL)
		}
		return nil
	},
}
