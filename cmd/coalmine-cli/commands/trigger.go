package commands

import "github.com/spf13/cobra"

func newTriggerCmd() *cobra.Command {
	var id, name, slug, comment string
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Report a check-in for a canary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := identifierQuery(id, name, slug)
			if err != nil {
				return err
			}
			if comment != "" {
				q.Set("comment", comment)
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Call("trigger", q)
			if err != nil {
				return err
			}
			printResponse(resp)
			return nil
		},
	}
	addIdentifierFlags(cmd, &id, &name, &slug)
	cmd.Flags().StringVar(&comment, "comment", "", "optional history comment")
	return cmd
}
