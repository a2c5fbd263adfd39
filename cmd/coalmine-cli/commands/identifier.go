package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// addIdentifierFlags registers --id/--name/--slug on a command that
// resolves a canary by one of the three, per spec.md §6.
func addIdentifierFlags(cmd *cobra.Command, id, name, slug *string) {
	cmd.Flags().StringVar(id, "id", "", "canary id")
	cmd.Flags().StringVar(name, "name", "", "canary name")
	cmd.Flags().StringVar(slug, "slug", "", "canary slug")
}

// identifierQuery builds the query fragment identifying a canary, erroring
// if zero or more than one of id/name/slug was given.
func identifierQuery(id, name, slug string) (url.Values, error) {
	q := url.Values{}
	given := 0
	if id != "" {
		q.Set("id", id)
		given++
	}
	if name != "" {
		q.Set("name", name)
		given++
	}
	if slug != "" {
		q.Set("slug", slug)
		given++
	}
	if given != 1 {
		return nil, fmt.Errorf("specify exactly one of --id, --name, or --slug")
	}
	return q, nil
}
