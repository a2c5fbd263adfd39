package commands

import (
	"encoding/json"
	"fmt"

	"github.com/opswatch/coalmine/cmd/coalmine-cli/client"
)

func printCanary(c map[string]any) {
	data, _ := json.MarshalIndent(c, "", "  ")
	fmt.Println(string(data))
}

func printCanaries(list []map[string]any) {
	data, _ := json.MarshalIndent(list, "", "  ")
	fmt.Println(string(data))
}

func printResponse(r *client.Response) {
	switch {
	case r.Canary != nil:
		printCanary(r.Canary)
	case r.Canaries != nil:
		printCanaries(r.Canaries)
	default:
		data, _ := json.MarshalIndent(r, "", "  ")
		fmt.Println(string(data))
	}
}
