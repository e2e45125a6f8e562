package app

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcp-hub/proxy/pkg/hub/config"
	"github.com/mcp-hub/proxy/pkg/hub/control"
	"github.com/mcp-hub/proxy/pkg/hub/pidfile"
	"github.com/mcp-hub/proxy/pkg/logger"
)

const internalDaemonizeFlag = "internal-daemonize"

func newStartCmd() *cobra.Command {
	var background bool
	var internalDaemonize bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if background && !internalDaemonize {
				return startInBackground(cmd)
			}
			return runForeground(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&background, flagBackground, false, "run as a detached background process")
	cmd.Flags().BoolVar(&internalDaemonize, internalDaemonizeFlag, false, "internal: marks the re-exec'd background child")
	_ = cmd.Flags().MarkHidden(internalDaemonizeFlag)

	return cmd
}

func resolveConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, exitCodeError(3, "%s", err)
	}
	if p := viper.GetInt(flagPort); p != 0 {
		cfg.Port = p
	}
	if v := viper.GetString(flagConfig); v != "" {
		cfg.ComposeFile = v
	}
	if v := viper.GetString(flagLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, exitCodeError(3, "%s", err)
	}
	return cfg, nil
}

func runForeground(ctx context.Context) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	// The logger reads its level from LOG_LEVEL; export the resolved level
	// so a --log-level flag takes effect.
	_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	logger.Initialize()

	pf := pidfile.New(defaultPidfilePath())
	if err := ensureParentDir(defaultPidfilePath()); err != nil {
		return exitCodeError(3, "preparing pidfile directory: %s", err)
	}
	if err := pf.Acquire(); err != nil {
		return exitCodeError(2, "%s", err)
	}
	defer pf.Release()

	instance, err := control.New(cfg)
	if err != nil {
		return exitCodeError(3, "%s", err)
	}

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := instance.Run(runCtx); err != nil {
		return exitCodeError(1, "%s", err)
	}
	return nil
}

// startInBackground re-execs the current binary with the internal
// daemonize flag set and detaches it from the controlling terminal,
// the common re-exec pattern for backgrounding a CLI without a true
// fork(2) (unsafe in the multi-threaded Go runtime). The child is always
// invoked as `start`, so `restart` can use this path too.
func startInBackground(cmd *cobra.Command) error {
	logFile, err := os.OpenFile(defaultLogfilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if mkErr := ensureParentDir(defaultLogfilePath()); mkErr == nil {
			logFile, err = os.OpenFile(defaultLogfilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		}
		if err != nil {
			return exitCodeError(3, "opening log file: %s", err)
		}
	}
	defer logFile.Close()

	args := []string{"start", "--" + internalDaemonizeFlag}
	if p := viper.GetInt(flagPort); p != 0 {
		args = append(args, "--"+flagPort, strconv.Itoa(p))
	}
	if v := viper.GetString(flagConfig); v != "" {
		args = append(args, "--"+flagConfig, v)
	}
	if v := viper.GetString(flagLogLevel); v != "" {
		args = append(args, "--"+flagLogLevel, v)
	}
	child := exec.Command(os.Args[0], args...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return exitCodeError(3, "starting background process: %s", err)
	}

	cmd.Printf("started in background, pid %d, logs at %s\n", child.Process.Pid, defaultLogfilePath())
	return nil
}
