package commands

import (
	"fmt"
	"net/url"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var name, periodicity, description string
	var emails []string
	var paused, interactive bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new canary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interactive {
				if err := runCreateWizard(&name, &periodicity, &description, &paused); err != nil {
					return err
				}
			}
			if name == "" || periodicity == "" {
				return fmt.Errorf("--name and --periodicity are required (or pass --interactive)")
			}

			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			q := url.Values{}
			q.Set("name", name)
			q.Set("periodicity", periodicity)
			if description != "" {
				q.Set("description", description)
			}
			for _, e := range emails {
				q.Add("email", e)
			}
			if paused {
				q.Set("paused", "true")
			}
			resp, err := c.Call("create", q)
			if err != nil {
				return err
			}
			printResponse(resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "canary name")
	cmd.Flags().StringVar(&periodicity, "periodicity", "", "seconds between expected check-ins, or a crontab-style schedule")
	cmd.Flags().StringVar(&description, "description", "", "free-text description")
	cmd.Flags().StringSliceVar(&emails, "email", nil, "notification recipient (repeatable)")
	cmd.Flags().BoolVar(&paused, "paused", false, "create the canary already paused")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "use a form-driven creation wizard")
	return cmd
}

// runCreateWizard prompts for the fields required by create using a
// charmbracelet/huh form, the way the teacher's setup flows drive
// interactive configuration.
func runCreateWizard(name, periodicity, description *string, paused *bool) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Canary name").Value(name),
			huh.NewInput().Title("Periodicity (seconds, or a crontab schedule)").Value(periodicity),
			huh.NewInput().Title("Description (optional)").Value(description),
			huh.NewConfirm().Title("Create paused?").Value(paused),
		),
	)
	return form.Run()
}
