package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/guestconv/internal/common"
	"github.com/osbuild/guestconv/internal/guestfs/hostfs"
)

type options struct {
	configFile string
	verbose    bool
	journal    bool
	json       bool
	dumpConfig bool
}

func run(opts options, stdout io.Writer, logger *logrus.Logger) error {
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if opts.journal {
		if !common.JournalAvailable() {
			return errors.New("systemd journal is not available")
		}
		logger.AddHook(common.NewJournalHook("guestconv-inspect"))
	}

	config, err := LoadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}
	if opts.dumpConfig {
		return DumpConfig(config, stdout)
	}

	h, err := hostfs.New(config.HostfsOptions(), logger)
	if err != nil {
		return err
	}

	report, err := inspect(h, config.Root, logger)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(stdout, report)
	return nil
}

func newRootCmd(stdout io.Writer, logger *logrus.Logger) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "guestconv-inspect",
		Short:         "Detect the boot loader of a guest and list its kernels",
		Example:       "  guestconv-inspect --config guest.toml --json",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, stdout, logger)
		},
	}
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "guest description (TOML)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&opts.journal, "journal", false, "also log to the systemd journal")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&opts.dumpConfig, "dump-config", false, "print the parsed guest description and exit")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetOutput(os.Stderr)

	if err := newRootCmd(os.Stdout, logger).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
