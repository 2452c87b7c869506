package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"larder/pkg/config"
	"larder/pkg/db"
	gos3 "larder/pkg/s3"
	"larder/services/api"
	"larder/services/auditor"
	"larder/services/backup"
	"larder/services/pantry/store"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand(config.LoadCLI, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type loader func(ctx context.Context) (config.CLI, error)

type cli struct {
	load loader
	out  io.Writer
}

func newRootCommand(load loader, out io.Writer) *cobra.Command {
	c := &cli{load: load, out: out}

	cmd := &cobra.Command{
		Use:           "larderctl",
		Short:         "Operator tooling for the larder pantry service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	cmd.AddCommand(c.newMigrateCommand())
	cmd.AddCommand(c.newSeedCommand())
	cmd.AddCommand(c.newTokenCommand())
	cmd.AddCommand(c.newAuditCommand())
	cmd.AddCommand(c.newBackupCommand())
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (c *cli) config(ctx context.Context) (config.CLI, error) {
	cfg, err := c.load(ctx)
	if err != nil {
		return config.CLI{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func requireDatabase(cfg config.CLI) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set")
	}
	return nil
}

func (c *cli) newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := c.config(ctx)
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "migrations applied")
			return nil
		},
	}
}

func (c *cli) newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert reference categories and units, keeping existing rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := c.config(ctx)
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}

			data, err := store.DefaultReference()
			if file != "" {
				data, err = store.LoadReferenceFile(file)
			}
			if err != nil {
				return err
			}

			gdb, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close(gdb)

			if err := store.Seed(ctx, gdb, data); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "seeded %d categories and %d units\n", len(data.Categories), len(data.Units))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML file with categories and units (defaults to the built-in set)")
	return cmd
}

func (c *cli) newTokenCommand() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config(commandContext(cmd))
			if err != nil {
				return err
			}
			if cfg.JWTSigningKey == "" {
				return errors.New("JWT_SIGNING_KEY must be set")
			}
			token, err := api.IssueToken([]byte(cfg.JWTSigningKey), cfg.JWTIssuer, user, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User id placed in the subject claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (c *cli) newAuditCommand() *cobra.Command {
	var (
		session string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the audit trail of a shopping session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := c.config(ctx)
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}

			pool, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			st, err := auditor.NewPGStore(pool)
			if err != nil {
				return err
			}
			entries, err := st.Trail(ctx, session, limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "Shopping session id")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of entries")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func (c *cli) newBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, verify and restore signed pantry backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(c.newBackupCreateCommand())
	cmd.AddCommand(c.newBackupVerifyCommand())
	cmd.AddCommand(c.newBackupRestoreCommand())
	return cmd
}

func (c *cli) newBackupCreateCommand() *cobra.Command {
	var (
		user   string
		output string
		upload bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write a signed backup of one user's pantry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := c.config(ctx)
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}
			signer, err := backup.NewSignerFromEnv()
			if err != nil {
				return err
			}

			gdb, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close(gdb)

			src, err := backup.NewGormSource(gdb)
			if err != nil {
				return err
			}
			manifest, err := backup.Build(ctx, backup.BuildConfig{
				Source: src,
				UserID: user,
				Output: output,
				Signer: signer,
				Stdout: c.out,
			})
			if err != nil {
				return err
			}
			if !upload {
				return nil
			}

			bucket, err := backupBucket(ctx, cfg)
			if err != nil {
				return err
			}
			key := backup.ObjectKey(user, manifest.CreatedAt)
			if err := backup.Upload(ctx, bucket, output, key); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "uploaded s3://%s/%s\n", bucket.Name(), key)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User whose pantry is backed up")
	cmd.Flags().StringVar(&output, "output", "", "Destination archive (tar.zst)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Also upload the archive to BACKUP_BUCKET")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func backupBucket(ctx context.Context, cfg config.CLI) (*gos3.Bucket, error) {
	if !cfg.S3.Enabled() || cfg.BackupBucket == "" {
		return nil, errors.New("S3_ENDPOINT and BACKUP_BUCKET must be set to upload")
	}
	client, err := gos3.NewClient(ctx, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return gos3.NewBucket(client, cfg.BackupBucket)
}

func (c *cli) newBackupVerifyCommand() *cobra.Command {
	var archive string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a backup's signature and checksums",
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := backup.NewSignerFromEnv()
			if err != nil {
				return err
			}
			manifest, snap, err := backup.Verify(commandContext(cmd), archive, signer)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "verified backup of %s taken %s: %d ingredients, %d sessions, %d checks\n",
				manifest.UserID, manifest.CreatedAt.Format(time.RFC3339),
				len(snap.Ingredients), len(snap.Sessions), len(snap.Checks))
			return nil
		},
	}

	cmd.Flags().StringVar(&archive, "file", "", "Path to the backup tar.zst")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) newBackupRestoreCommand() *cobra.Command {
	var archive string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Verify a backup and write its ingredients back",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := c.config(ctx)
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}
			signer, err := backup.NewSignerFromEnv()
			if err != nil {
				return err
			}

			gdb, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close(gdb)

			src, err := backup.NewGormSource(gdb)
			if err != nil {
				return err
			}
			_, err = backup.Restore(ctx, backup.RestoreConfig{
				Archive: archive,
				Source:  src,
				Signer:  signer,
				Stdout:  c.out,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&archive, "file", "", "Path to the backup tar.zst")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
