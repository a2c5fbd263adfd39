package commands

import "github.com/spf13/cobra"

func newGetCmd() *cobra.Command {
	var id, name, slug string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch a single canary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := identifierQuery(id, name, slug)
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Call("get", q)
			if err != nil {
				return err
			}
			printResponse(resp)
			return nil
		},
	}
	addIdentifierFlags(cmd, &id, &name, &slug)
	return cmd
}
