package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := buildRoot(newCommand(os.Stdout))
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and its subcommands
func buildRoot(c *command) *cobra.Command {
	root := createRootCommand(c.global)
	root.AddCommand(
		createOperationCommand(c, opStart, "Start (or restart) the Unicorn server"),
		createOperationCommand(c, opStop, "Gracefully stop the Unicorn server"),
		createOperationCommand(c, opReload, "Ask the running Unicorn server to reload"),
		createStatusCommand(c),
		createWatchCommand(c),
		createServeCommand(c),
		createVersionCommand(c),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "unicornguard",
		Short: "Supervise a Unicorn application server",
		Long: `unicornguard starts, stops and reloads a single Unicorn server and can
reload it automatically when application files change.

Examples:
  unicornguard start --config unicornguard.toml
  unicornguard reload
  unicornguard watch                       # start, reload on change, stop on exit
  unicornguard serve --listen :8080        # HTTP API
  unicornguard status --api-url=http://host:8080/api`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to config file (toml, yaml or json)")
	return root
}

func addRemoteFlags(cmd *cobra.Command, f *RemoteFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "remote unicornguard API (e.g. http://host:8080/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 2*time.Minute, "request timeout")
	cmd.Flags().StringVar(&f.CACert, "ca-cert", "", "CA certificate for https API endpoints")
	cmd.Flags().BoolVar(&f.Insecure, "insecure", false, "skip TLS verification")
}

func createOperationCommand(c *command, op operation, short string) *cobra.Command {
	f := &RemoteFlags{}
	cmd := &cobra.Command{
		Use:   string(op),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Operation(cmd.Context(), op, *f)
		},
	}
	addRemoteFlags(cmd, f)
	return cmd
}

func createStatusCommand(c *command) *cobra.Command {
	f := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the Unicorn server state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context(), *f)
		},
	}
	addRemoteFlags(cmd, &f.RemoteFlags)
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&f.Process, "process", false, "include OS process details (remote only)")
	return cmd
}

func createWatchCommand(c *command) *cobra.Command {
	f := &WatchFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start the server and reload it when watched files change",
		Long: `Start the Unicorn server, reload it whenever a file matching the
configured patterns changes, and stop it when interrupted.

Examples:
  unicornguard watch
  unicornguard watch --no-start --keep-running`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return c.Watch(ctx, *f)
		},
	}
	cmd.Flags().BoolVar(&f.NoStart, "no-start", false, "do not start the server before watching")
	cmd.Flags().BoolVar(&f.KeepRunning, "keep-running", false, "leave the server running on exit")
	return cmd
}

func createServeCommand(c *command) *cobra.Command {
	f := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API exposing start, stop, reload, status and metrics.
With --watch the file watcher runs alongside it.

Examples:
  unicornguard serve --listen :8080
  unicornguard serve --watch
  unicornguard serve --daemonize --pidfile /var/run/unicornguard.pid --logfile /var/log/unicornguard.log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.Daemonize {
				return daemonize(f.PIDFile, f.LogFile)
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return c.Serve(ctx, *f)
		},
	}
	cmd.Flags().StringVar(&f.Listen, "listen", "", "listen address (overrides http.listen)")
	cmd.Flags().BoolVar(&f.Watch, "watch", false, "also run the file watcher")
	cmd.Flags().BoolVar(&f.Daemonize, "daemonize", false, "run in the background")
	cmd.Flags().StringVar(&f.PIDFile, "pidfile", "", "write the daemon pid here")
	cmd.Flags().StringVar(&f.LogFile, "logfile", "", "redirect daemon output to file")
	return cmd
}

func createVersionCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(c.out, "unicornguard", version)
		},
	}
}
