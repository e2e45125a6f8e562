package app

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mcp-hub/proxy/pkg/hub/pidfile"
)

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop and then start the proxy in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultPidfilePath()
			if _, err := pidfile.ReadPID(path); err == nil {
				if err := pidfile.Stop(path); err != nil {
					return exitCodeError(2, "%s", err)
				}
				// Give the previous instance a moment to release its
				// pidfile lock before the new one tries to acquire it.
				time.Sleep(200 * time.Millisecond)
			}

			start := newStartCmd()
			_ = start.Flags().Set(flagBackground, "true")
			start.SetContext(cmd.Context())
			return start.RunE(start, nil)
		},
	}
}
