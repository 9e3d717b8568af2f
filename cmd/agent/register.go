package main

import (
	"github.com/spf13/cobra"

	"github.com/iudanet/flocksync/pkg/api"
)

var registerFlags struct {
	name     string
	url      string
	leader   string
	username string
	autoSync bool
}

var registerCmd = &cobra.Command{
	Use:   "register <slug>",
	Short: "Register a new follower instance",
	Long: `Register a new follower instance with the coordination service. When a
leader and username are given, the leader password is prompted for so it
never appears in shell history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newAPIClient(configFile)
		if err != nil {
			return err
		}
		slug := args[0]

		url := registerFlags.url
		if url == "" {
			url = cfg.GetString(cfgKeyServiceURL) + "/" + slug
		}

		var password string
		if registerFlags.leader != "" && registerFlags.username != "" {
			password, err = stdio.ReadPassword("Leader password: ")
			if err != nil {
				return err
			}
		}

		inst, err := client.CreateInstance(cmd.Context(), api.CreateInstanceRequest{
			Slug:     slug,
			Name:     registerFlags.name,
			URL:      url,
			Leader:   registerFlags.leader,
			Username: registerFlags.username,
			Password: password,
			AutoSync: registerFlags.autoSync,
		})
		if err != nil {
			return err
		}

		stdio.Printf("Registered instance %s\n", inst.Slug)
		stdio.Printf("  id:     %s\n", inst.ID)
		stdio.Printf("  name:   %s\n", inst.Name)
		stdio.Printf("  url:    %s\n", inst.URL)
		stdio.Printf("  state:  %s\n", inst.State)
		if inst.Leader != "" {
			stdio.Printf("  leader: %s\n", inst.Leader)
		}
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerFlags.name, "name", "",
		"display name (defaults to the slug)")
	registerCmd.Flags().StringVar(&registerFlags.url, "url", "",
		"local URL (defaults to <service_url>/<slug>)")
	registerCmd.Flags().StringVar(&registerFlags.leader, "leader", "",
		"URL of the leader instance to sync from")
	registerCmd.Flags().StringVar(&registerFlags.username, "username", "",
		"username on the leader instance")
	registerCmd.Flags().BoolVar(&registerFlags.autoSync, "auto-sync", false,
		"keep this instance synced with its leader")
}
