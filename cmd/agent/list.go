package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered follower instances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newAPIClient(configFile)
		if err != nil {
			return err
		}

		instances, err := client.ListInstances(cmd.Context())
		if err != nil {
			return err
		}
		if len(instances) == 0 {
			stdio.Println("No instances registered")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSLUG\tNAME\tSTATE\tAUTO-SYNC\tLEADER")
		for _, inst := range instances {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
				inst.ID, inst.Slug, inst.Name, inst.State, inst.AutoSync, inst.Leader)
		}
		return w.Flush()
	},
}
