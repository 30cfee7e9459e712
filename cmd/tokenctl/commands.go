package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eldtechnologies/landchat/internal/auth"
	"github.com/eldtechnologies/landchat/internal/config"
	"github.com/eldtechnologies/landchat/internal/models"
	"github.com/eldtechnologies/landchat/internal/store"
)

func newGenkeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate an Ed25519 signing key pair",
		Long:  "Prints a base64 key pair. Set TOKEN_PUBLIC_KEY on the server to the public half.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Public key (base64):  %s\n", base64.StdEncoding.EncodeToString(pub))
			fmt.Fprintf(out, "Private key (base64): %s\n", base64.StdEncoding.EncodeToString(priv))
			return nil
		},
	}
}

type signOptions struct {
	key  string
	user string
	role string
	ttl  time.Duration
}

func newSignCommand() *cobra.Command {
	var opts signOptions

	cmd := &cobra.Command{
		Use:     "sign",
		Short:   "Mint a bearer token for a user",
		Args:    cobra.NoArgs,
		Example: `  tokenctl sign --key "$PRIVATE_KEY" --user 6806f579 --role admin --ttl 24h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.key == "" || opts.user == "" {
				return errors.New("--key and --user are required")
			}

			priv, err := auth.ParsePrivateKey(opts.key)
			if err != nil {
				return err
			}

			token, err := auth.NewIssuer(priv, opts.ttl).Issue(opts.user, opts.role)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Authorization: Bearer %s\n", token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.key, "key", "", "Base64-encoded Ed25519 private key")
	cmd.Flags().StringVar(&opts.user, "user", "", "User id to put in the token subject")
	cmd.Flags().StringVar(&opts.role, "role", "", "Optional role claim")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}

func newSeedUserCommand() *cobra.Command {
	var user models.User

	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Create or update a user record in the configured database",
		Args:  cobra.NoArgs,
		Example: `  tokenctl seed-user --id admin-1 --name Admin --role admin
  tokenctl seed-user --id u-42 --name Sara --fcm-token "$DEVICE_TOKEN"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user.ID == "" {
				return errors.New("--id is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			ds, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer ds.Close()

			if err := ds.UpsertUser(ctx, &user); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "user %s saved\n", user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user.ID, "id", "", "User id")
	cmd.Flags().StringVar(&user.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&user.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&user.ProfileImage, "image", "", "Profile image URL")
	cmd.Flags().StringVar(&user.FCMToken, "fcm-token", "", "Firebase device token")
	cmd.Flags().StringVar(&user.Role, "role", "user", "Role (user or admin)")

	return cmd
}

func openStore(ctx context.Context, cfg *config.Config) (store.DataStore, error) {
	if cfg.DatabaseURL != "" {
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return store.NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	return store.NewSQLiteStore(ctx, cfg.SQLitePath)
}
