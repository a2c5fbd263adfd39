package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var id, name, slug string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a canary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := identifierQuery(id, name, slug)
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if _, err := c.Call("delete", q); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
	addIdentifierFlags(cmd, &id, &name, &slug)
	return cmd
}
