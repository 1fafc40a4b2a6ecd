package root

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/parget/parget/pkg/cli"
	"github.com/parget/parget/pkg/config"
	"github.com/parget/parget/pkg/console"
	"github.com/parget/parget/pkg/download"
	"github.com/parget/parget/pkg/logging"
)

const rootLongDesc = `
parget

Parget downloads a single large file over HTTP(S) by splitting it into byte
ranges and fetching the ranges concurrently, reassembling them in place inside
a pre-sized destination file.

Before committing to a worker count, parget probes the server with increasing
numbers of concurrent lightweight requests to discover how many simultaneous
connections it tolerates. The download can be paused and resumed at the
transport level (connections stay open, no received bytes are lost) and
cancelled at any time.
`

func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parget [flags] <url> <dest>",
		Short: "parget",
		Long:  rootLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.PersistentStartupProcessFlags()
		},
		RunE:    runRootCMD,
		Args:    cobra.ExactArgs(2),
		Example: `  parget https://example.com/large.bin large.bin`,
	}
	cmd.SetUsageTemplate(cli.UsageTemplate)
	if err := config.AddRootPersistentFlags(cmd); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return cmd
}

func runRootCMD(cmd *cobra.Command, args []string) error {
	// After we run through the PreRun functions we want to silence usage from
	// being printed on all errors
	cmd.SilenceUsage = true

	urlString := args[0]
	dest := args[1]

	if err := cli.EnsureDestinationNotExist(dest); err != nil {
		return err
	}

	return rootExecute(cmd.Context(), urlString, dest)
}

// rootExecute wires the session to the console and runs both until the
// download reaches a terminal state.
func rootExecute(ctx context.Context, urlString, dest string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	plain := viper.GetBool(config.OptPlain) || !term.IsTerminal(int(os.Stdout.Fd()))

	logs := &logging.Buffer{}
	var mirror io.Writer
	if plain {
		mirror = os.Stderr
	}
	logger := logging.NewSessionLogger(logs, mirror)

	cfg := download.Config{
		URL:             urlString,
		Dest:            dest,
		MaxConnections:  viper.GetInt(config.OptConnections),
		SkipProbe:       viper.GetBool(config.OptSkipProbe),
		ConnectTimeout:  viper.GetDuration(config.OptConnTimeout),
		MetadataRetries: viper.GetInt(config.OptRetries),
		ProbeTimeout:    viper.GetDuration(config.OptProbeTimeout),
		ProbeGrace:      viper.GetDuration(config.OptProbeGrace),
	}
	session := download.NewSession(cfg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	if !plain {
		ui := console.New(session, logs, logger)
		g.Go(func() error {
			return ui.Run(gctx)
		})
	}
	return g.Wait()
}
