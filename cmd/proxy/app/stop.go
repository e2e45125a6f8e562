package app

import (
	"github.com/spf13/cobra"

	"github.com/mcp-hub/proxy/pkg/hub/pidfile"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultPidfilePath()
			if err := pidfile.Stop(path); err != nil {
				return exitCodeError(2, "%s", err)
			}
			cmd.Println("stop signal sent")
			return nil
		},
	}
}
