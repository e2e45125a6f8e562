// Package app wires the proxy's subcommands onto a cobra root command.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagPort       = "port"
	flagConfig     = "config"
	flagLogLevel   = "log-level"
	flagBackground = "background"

	envPrefix = "PROXY"
)

// NewRootCmd builds the root `proxy` command with every subcommand
// attached and its persistent flags bound through viper so environment
// variables and flags share one precedence order (flag > env > default).
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "proxy",
		Short:         "MCP Hub aggregation proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().Int(flagPort, 0, "listen port (overrides PROXY_PORT)")
	root.PersistentFlags().String(flagConfig, "", "compose file path (overrides MCP_COMPOSE_FILE)")
	root.PersistentFlags().String(flagLogLevel, "", "log level (overrides LOG_LEVEL)")

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	_ = viper.BindPFlag(flagPort, root.PersistentFlags().Lookup(flagPort))
	_ = viper.BindPFlag(flagConfig, root.PersistentFlags().Lookup(flagConfig))
	_ = viper.BindPFlag(flagLogLevel, root.PersistentFlags().Lookup(flagLogLevel))

	root.AddCommand(newStartCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newRestartCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newServersCmd())
	root.AddCommand(newLogsCmd())

	return root
}

func defaultPidfilePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mcp-hub-proxy", "proxy.pid")
}

func defaultLogfilePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mcp-hub-proxy", "proxy.log")
}

func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func exitCodeError(code int, format string, args ...any) error {
	return &cliError{code: code, msg: fmt.Sprintf(format, args...)}
}

type cliError struct {
	code int
	msg  string
}

func (e *cliError) Error() string { return e.msg }

// ExitCode extracts the documented exit status from an error returned by
// a subcommand's RunE, defaulting to 1 (operational warning) for any
// error that wasn't deliberately classified.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ce, ok := err.(*cliError); ok {
		return ce.code
	}
	return 1
}
