// Command qmemadm is the thin administrative client for qmemd: it opens the
// daemon's local IPC socket (spec §4.6), sends one framed request, and
// prints the raw JSON reply to stdout. No table/color rendering -- that is
// explicitly out of scope (spec.md §1 Non-goals) -- this is a debugging and
// scripting tool, not an operator dashboard. Command structure follows the
// teacher's pkg/cli subcommand idiom (bundle.go/recipe.go's
// &cli.Command{Name, Usage, Action} shape), generalized from recipe/bundle
// generation to one-shot IPC request/reply verbs.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/qscuio/qmemd/pkg/ipc"
)

var version = "dev"

func main() {
	cmd := rootCmd()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:    "qmemadm",
		Usage:   "Administrative client for the qmemd memory sampling daemon",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "socket",
				Aliases: []string{"s"},
				Value:   "/run/qmemd.sock",
				Usage:   "path to the qmemd IPC socket",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 5 * time.Second,
				Usage: "connection and round-trip timeout",
			},
		},
		Commands: []*cli.Command{
			statusCmd(),
			snapshotCmd(),
			historyCmd(),
			servicesCmd(),
			shutdownCmd(),
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print the daemon's current tick status as JSON",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return issueRequest(cmd, ipc.ReqStatus, nil)
		},
	}
}

func snapshotCmd() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "print the most recently published snapshot as JSON",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return issueRequest(cmd, ipc.ReqSnapshot, nil)
		},
	}
}

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "print recent ring-buffer history entries as JSON",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "count",
				Value: -1,
				Usage: "number of most recent entries to fetch (-1 for all retained)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			payload := make([]byte, 4)
			binary.LittleEndian.PutUint32(payload, uint32(int32(cmd.Int("count"))))
			return issueRequest(cmd, ipc.ReqHistory, payload)
		},
	}
}

func servicesCmd() *cli.Command {
	return &cli.Command{
		Name:  "services",
		Usage: "print the registered collector roster as JSON",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return issueRequest(cmd, ipc.ReqServices, nil)
		},
	}
}

func shutdownCmd() *cli.Command {
	return &cli.Command{
		Name:  "shutdown",
		Usage: "request a graceful daemon shutdown",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return issueRequest(cmd, ipc.ReqShutdown, nil)
		},
	}
}

// issueRequest dials the socket named by the root --socket flag, writes one
// framed request, reads the one framed reply, and writes its payload
// verbatim to stdout. Every verb above is a single round-trip, matching
// spec §4.6's "exactly one framed request/reply per connection" policy.
func issueRequest(cmd *cli.Command, reqType ipc.ReqType, payload []byte) error {
	root := cmd
	for root.Parent() != nil {
		root = root.Parent()
	}
	socketPath := root.String("socket")
	timeout := root.Duration("timeout")

	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	if err := ipc.WriteFrame(conn, reqType, 1, payload); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	_, resp, err := ipc.ReadFrame(conn)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	if _, err := os.Stdout.Write(resp); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	fmt.Println()
	return nil
}
