package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	_ "bazil.org/fuse/fs/fstestutil"
	"github.com/spf13/cobra"

	"github.com/tagforge/tagfs/engine"
	"github.com/tagforge/tagfs/store"
	"github.com/tagforge/tagfs/tagfs"
	"github.com/tagforge/tagfs/version"
)

// NewMountCmd creates and returns the mount subcommand for the tagfs CLI.
// It handles mounting tagfs filesystems at specified mountpoints.
func NewMountCmd() *cobra.Command {
	var (
		configPath    string
		keepEmptyTags bool
		logLevel      string
	)

	cmd := &cobra.Command{
		Use:   "mount STORE_PATH MOUNTPOINT",
		Short: "Mount a tagfs filesystem",
		Long: `Mount a tagfs filesystem at the specified mountpoint.

STORE_PATH is the path to the content store directory.
MOUNTPOINT is the directory where the filesystem will be mounted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg.StorePath = args[0]
			if cmd.Flags().Changed("keep-empty-tags") {
				cfg.KeepEmptyTags = keepEmptyTags
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return runMount(cfg, args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().BoolVar(&keepEmptyTags, "keep-empty-tags", false, "Keep tags whose last entry is removed")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	return cmd
}

func runMount(cfg Config, mountpoint string) error {
	fmt.Printf("tagfs %s starting...\n", version.GetFullVersion())

	log := newLogger(cfg.LogLevel)

	st, err := store.Open(store.Config{Path: cfg.StorePath, Logger: log})
	if err != nil {
		return fmt.Errorf("opening content store: %w", err)
	}
	defer st.Close()

	eng, err := engine.New(engine.Config{
		Store:         st,
		KeepEmptyTags: cfg.KeepEmptyTags,
		RetryBudget:   cfg.RetryBudget,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	c, err := fuse.Mount(
		mountpoint,
		fuse.FSName("tagfs"),
		fuse.Subtype("tagfs"),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Info("received interrupt signal, shutting down")

		eng.Close()
		fuse.Unmount(mountpoint)
		c.Close()
		st.Close()

		log.Info("shutdown complete")
		os.Exit(0)
	}()

	log.WithField("mountpoint", mountpoint).WithField("store", cfg.StorePath).
		Infof("tagfs %s mounted", version.GetVersion())
	return fs.Serve(c, tagfs.NewFS(eng))
}
