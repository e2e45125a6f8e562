package app

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/mcp-hub/proxy/pkg/hub/pidfile"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the proxy is running and healthy",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := pidfile.ReadPID(defaultPidfilePath())
			if err != nil || !pidfile.IsRunning(pid) {
				cmd.Println("not running")
				return exitCodeError(2, "proxy is not running")
			}

			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			statusResp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/status", cfg.Port))
			if err != nil {
				return exitCodeError(2, "proxy process is running but not reachable: %s", err)
			}
			defer statusResp.Body.Close()
			text, _ := io.ReadAll(statusResp.Body)
			cmd.Println(string(text))

			healthResp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Port))
			if err != nil {
				return exitCodeError(2, "proxy process is running but not reachable: %s", err)
			}
			defer healthResp.Body.Close()

			var parsed struct {
				Servers        int `json:"servers"`
				HealthyServers int `json:"healthy_servers"`
			}
			_ = json.NewDecoder(healthResp.Body).Decode(&parsed)
			if parsed.Servers > 0 && parsed.HealthyServers < parsed.Servers {
				return exitCodeError(1, "proxy is degraded")
			}
			return nil
		},
	}
}
