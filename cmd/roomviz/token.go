package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/roomviz-backend/internal/app"
	httpMW "github.com/yungbote/roomviz-backend/internal/http/middleware"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed access token for local testing",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (random when empty)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}
	userID := uuid.New()
	if tokenUser != "" {
		if userID, err = uuid.Parse(tokenUser); err != nil {
			return fmt.Errorf("bad user id: %w", err)
		}
	}
	tok, err := httpMW.SignToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, userID, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
