package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/flocksync/internal/models"
)

var stateCmd = &cobra.Command{
	Use:   "state <instance-id> [new-state]",
	Short: "Show or change an instance's sync state",
	Long: fmt.Sprintf(`Show the sync state of an instance, or transition it to a new state.
Valid states: %s. Only legal transitions are accepted.`,
		strings.Join(stateNames(), ", ")),
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newAPIClient(configFile)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			inst, err := client.GetInstance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			stdio.Printf("%s\n", inst.State)
			return nil
		}

		inst, err := client.TransitionInstance(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		stdio.Printf("Instance %s is now %s\n", inst.Slug, inst.State)
		return nil
	},
}

func stateNames() []string {
	names := make([]string, 0, len(models.SyncStates))
	for _, s := range models.SyncStates {
		names = append(names, string(s))
	}
	return names
}
