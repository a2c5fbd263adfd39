package commands

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var verbose bool
	var paused, late string
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List canaries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			q := url.Values{}
			if verbose {
				q.Set("verbose", "true")
			}
			if paused != "" {
				q.Set("paused", paused)
			}
			if late != "" {
				q.Set("late", late)
			}
			if search != "" {
				q.Set("search", search)
			}
			resp, err := c.Call("list", q)
			if err != nil {
				return err
			}
			printResponse(resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "include full canary details instead of just id and name")
	cmd.Flags().StringVar(&paused, "paused", "", "filter by paused state (true/false)")
	cmd.Flags().StringVar(&late, "late", "", "filter by late state (true/false)")
	cmd.Flags().StringVar(&search, "search", "", "regexp filter on name/slug/id/email")
	return cmd
}
