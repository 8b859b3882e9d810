// Command nntpcat talks to NNTP servers: it checks greetings, runs
// one-shot command lists and offers an interactive shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/urfave/cli/v3"

	"github.com/andaru/nntp/session"
)

// Version is set at build time.
var Version = "unknown"

const categoryConnection = "connection"

const (
	configFlag    = "config"
	hostFlag      = "host"
	portFlag      = "port"
	sslFlag       = "ssl"
	insecureFlag  = "insecure"
	userFlag      = "user"
	passFlag      = "pass"
	compressFlag  = "compress"
	echoFlag      = "echo"
	verboseFlag   = "verbose"
	timeoutFlag   = "timeout"
	chunkSizeFlag = "chunk-size"
)

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		ErrorMsg("%s\n", err)
		os.Exit(1)
	}
	glog.Flush()
}

func newCommand(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "nntpcat",
		Usage:  "talk to NNTP servers",
		Writer: w,
		Commands: []*cli.Command{
			greetCommand(),
			cmdCommand(),
			shellCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Program version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Fprintln(cmd.Root().Writer, Version)
			return nil
		},
	}
}

func greetCommand() *cli.Command {
	return &cli.Command{
		Name:  "greet",
		Usage: "Connect, print the greeting and capabilities, then quit",
		Flags: connectionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withSession(ctx, cmd, func(ctx context.Context, s *session.Session) error {
				w := cmd.Root().Writer
				fmt.Fprintln(w, s.Greeting())
				caps, err := capabilities(s)
				if err != nil {
					return err
				}
				for _, c := range caps {
					fmt.Fprintln(w, c)
				}
				return nil
			})
		},
	}
}

func cmdCommand() *cli.Command {
	return &cli.Command{
		Name:      "cmd",
		Usage:     "Send each argument as a command and print the responses",
		ArgsUsage: "command...",
		Flags:     connectionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			lines := cmd.Args().Slice()
			if len(lines) == 0 {
				return fmt.Errorf("no commands given")
			}
			return withSession(ctx, cmd, func(ctx context.Context, s *session.Session) error {
				for _, line := range lines {
					if _, err := exchange(s, line, cmd.Root().Writer); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Read commands from standard input",
		Flags: connectionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withSession(ctx, cmd, func(ctx context.Context, s *session.Session) error {
				return shell(ctx, s, os.Stdin, cmd.Root().Writer)
			})
		},
	}
}

func connectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     configFlag,
			Aliases:  []string{"c"},
			Usage:    "TOML configuration file",
			Category: categoryConnection,
			Sources:  cli.EnvVars("NNTP_CONFIG"),
		},
		&cli.StringFlag{
			Name:     hostFlag,
			Aliases:  []string{"H"},
			Usage:    "Server host (name or IP)",
			Category: categoryConnection,
			Sources:  cli.EnvVars("NNTP_HOST", "NNTPSERVER"),
		},
		&cli.StringFlag{
			Name:     portFlag,
			Aliases:  []string{"p"},
			Usage:    "Server port, defaults to 119 or 563 with --ssl",
			Category: categoryConnection,
			Sources:  cli.EnvVars("NNTP_PORT"),
		},
		&cli.BoolFlag{
			Name:     sslFlag,
			Aliases:  []string{"s"},
			Usage:    "Use TLS encryption",
			Category: categoryConnection,
		},
		&cli.BoolFlag{
			Name:     insecureFlag,
			Usage:    "Skip TLS certificate verification",
			Category: categoryConnection,
		},
		&cli.StringFlag{
			Name:     userFlag,
			Aliases:  []string{"u"},
			Usage:    "Authenticate with AUTHINFO USER",
			Category: categoryConnection,
			Sources:  cli.EnvVars("NNTP_USER"),
		},
		&cli.StringFlag{
			Name:     passFlag,
			Usage:    "Password for AUTHINFO PASS",
			Category: categoryConnection,
			Sources:  cli.EnvVars("NNTP_PASS"),
		},
		&cli.BoolFlag{
			Name:     compressFlag,
			Aliases:  []string{"z"},
			Usage:    "Negotiate compressed overview responses",
			Category: categoryConnection,
		},
		&cli.BoolFlag{
			Name:     echoFlag,
			Aliases:  []string{"e"},
			Usage:    "Mirror raw responses to stderr",
			Category: categoryConnection,
		},
		&cli.BoolFlag{
			Name:     verboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging",
			Category: categoryConnection,
		},
		&cli.DurationFlag{
			Name:     timeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "Connection timeout",
			Category: categoryConnection,
			Value:    30 * time.Second,
		},
		&cli.IntFlag{
			Name:     chunkSizeFlag,
			Usage:    "Maximum bytes per socket read, 0 for the default",
			Category: categoryConnection,
		},
	}
}

// withSession connects a session configured by cmd, runs f and quits.
func withSession(ctx context.Context, cmd *cli.Command, f func(context.Context, *session.Session) error) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		ErrorMsg("Argument validation errors:\n")
		for _, err := range errs {
			ErrorMsg(" - %s\n", err)
		}
		return fmt.Errorf("exiting")
	}
	if cfg.Verbose {
		flag.Set("logtostderr", "true")
		flag.Set("v", "2")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	setupSignalHandling(cancel)

	s, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err = f(ctx, s); err != nil {
		return err
	}
	if s.Connected() {
		if _, err = exchange(s, "QUIT", io.Discard); err != nil {
			glog.V(2).Infof("nntpcat: quit: %v", err)
		}
	}
	return nil
}
