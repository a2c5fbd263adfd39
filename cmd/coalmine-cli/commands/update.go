package commands

import (
	"github.com/spf13/cobra"
)

func newUpdateCmd() *cobra.Command {
	var id, slug string
	var name, periodicity, description string
	var emails []string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a canary (id or slug only, not name)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := identifierQuery(id, "", slug)
			if err != nil {
				return err
			}
			if name != "" {
				q.Set("name", name)
			}
			if periodicity != "" {
				q.Set("periodicity", periodicity)
			}
			if description != "" {
				q.Set("description", description)
			}
			for _, e := range emails {
				q.Add("email", e)
			}

			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Call("update", q)
			if err != nil {
				return err
			}
			printResponse(resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "canary id")
	cmd.Flags().StringVar(&slug, "slug", "", "canary slug")
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&periodicity, "periodicity", "", "new periodicity")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringSliceVar(&emails, "email", nil, `new recipient (repeatable); pass "-" alone to clear all`)
	return cmd
}
