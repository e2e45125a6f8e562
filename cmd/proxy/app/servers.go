package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type serverRow struct {
	Name              string `json:"name"`
	BaseURL           string `json:"base_url"`
	State             string `json:"state"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
}

func newServersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List backend servers and their current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/servers", cfg.Port))
			if err != nil {
				return exitCodeError(2, "proxy is not reachable: %s", err)
			}
			defer resp.Body.Close()

			var parsed struct {
				Servers []serverRow `json:"servers"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return exitCodeError(2, "decoding response: %s", err)
			}
			sort.Slice(parsed.Servers, func(i, j int) bool { return parsed.Servers[i].Name < parsed.Servers[j].Name })

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("NAME", "BASE URL", "STATE", "ERRORS")
			for _, s := range parsed.Servers {
				_ = table.Append([]string{s.Name, s.BaseURL, s.State, fmt.Sprintf("%d", s.ConsecutiveErrors)})
			}
			return table.Render()
		},
	}
}
