package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/walguard/walguard/internal/codec"
	"github.com/walguard/walguard/internal/common"
	"github.com/walguard/walguard/internal/config"
	"github.com/walguard/walguard/internal/engine"
	"github.com/walguard/walguard/internal/logging"
	"github.com/walguard/walguard/internal/manifest"
	"github.com/walguard/walguard/internal/objectstore"
)

var rootCmd = &cobra.Command{
	Use:   "walguard",
	Short: "Progressive WAL backup administration CLI",
	Long:  "Inspects and restores backups produced by the walguard backup engine.",
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a database from object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		timestamp, err := cmd.Flags().GetInt64("timestamp")
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		decodeOpt := engine.WithDecodeConfig(codec.PipelineConfig{
			Compression:   cfg.Compression,
			EncryptionKey: cfg.EncryptionKey,
		})

		ctx := context.Background()
		if timestamp > 0 {
			return engine.RestoreToTime(ctx, cfg.S3, output, uint64(timestamp), decodeOpt)
		}
		return engine.Restore(ctx, cfg.S3, output, decodeOpt)
	},
}

var generationsCmd = &cobra.Command{
	Use:   "generations",
	Short: "List backup generations and their segment/byte counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := objectstore.NewS3Store(context.Background(), cfg.S3)
		if err != nil {
			return err
		}

		keys, err := store.List(context.Background(), "")
		if err != nil {
			return err
		}

		var generations []string
		for _, key := range keys {
			if strings.HasSuffix(key, "/manifest.json") {
				generations = append(generations, strings.TrimSuffix(key, "/manifest.json"))
			}
		}
		sort.Strings(generations)

		for _, gen := range generations {
			data, err := store.Get(context.Background(), gen+"/manifest.json")
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t(manifest unreadable: %v)\n", gen, err)
				continue
			}
			m, err := manifest.Unmarshal(data)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t(manifest corrupt: %v)\n", gen, err)
				continue
			}
			var totalBytes uint64
			for _, seg := range m.Segments {
				totalBytes += seg.Size
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tsegments=%d\tbytes=%s\tcreated_at_ms=%d\n",
				gen, len(m.Segments), common.FormatBytes(int64(totalBytes)), m.CreatedAtMs)
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Dump one generation's manifest as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		generation, err := cmd.Flags().GetString("generation")
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := objectstore.NewS3Store(context.Background(), cfg.S3)
		if err != nil {
			return err
		}

		if generation == "" {
			latest, err := store.Get(context.Background(), "latest")
			if err != nil {
				return fmt.Errorf("no generation specified and no latest marker found: %w", err)
			}
			generation = string(latest)
		}

		data, err := store.Get(context.Background(), generation+"/manifest.json")
		if err != nil {
			return err
		}
		m, err := manifest.Unmarshal(data)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	restoreCmd.Flags().String("output", "", "path to write the restored database to")
	restoreCmd.MarkFlagRequired("output")
	restoreCmd.Flags().Int64("timestamp", 0, "restore to this point in time (milliseconds since epoch); 0 means latest")

	inspectCmd.Flags().String("generation", "", "generation id to inspect; defaults to the latest generation")

	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(generationsCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	logging.Init(envOr("WALGUARD_LOG_LEVEL", "info"))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
