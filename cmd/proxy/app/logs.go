package app

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the background proxy's log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultLogfilePath()
			f, err := os.Open(path)
			if err != nil {
				cmd.Println("no background log file found; the proxy may be running in the foreground, where logs go to its own stdout")
				return exitCodeError(2, "%s", err)
			}
			defer f.Close()

			if err := printTail(cmd.OutOrStdout(), f, lines); err != nil {
				return exitCodeError(1, "%s", err)
			}
			if !follow {
				return nil
			}
			return followFile(cmd.Context().Done(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().BoolVar(&follow, "follow", false, "keep printing new lines as they are written")
	cmd.Flags().IntVar(&lines, "lines", 50, "number of trailing lines to print")

	return cmd
}

func printTail(w interface{ Write([]byte) (int, error) }, f *os.File, n int) error {
	scanner := bufio.NewScanner(f)
	buf := make([]string, 0, n)
	for scanner.Scan() {
		buf = append(buf, scanner.Text())
		if len(buf) > n {
			buf = buf[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, line := range buf {
		fmt.Fprintln(w, line)
	}
	return nil
}

func followFile(done <-chan struct{}, w interface{ Write([]byte) (int, error) }, f *os.File) error {
	reader := bufio.NewReader(f)
	for {
		select {
		case <-done:
			return nil
		default:
		}
		line, err := reader.ReadString('\n')
		if line != "" {
			fmt.Fprint(w, line)
		}
		if err != nil {
			time.Sleep(250 * time.Millisecond)
		}
	}
}
