/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Seednode/wordrace/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		issuer string
		name   string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <player-id>",
		Short: "Print a signed player token.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := issueToken(secret, issuer, args[0], name, ttl)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)

			return err
		},
	}

	fs := cmd.Flags()

	fs.StringVar(&issuer, "jwt-issuer", "", "token issuer (env: WORDRACE_JWT_ISSUER)")
	fs.StringVar(&secret, "jwt-secret", "", "HS256 secret to sign with (env: WORDRACE_JWT_SECRET)")
	fs.StringVar(&name, "name", "", "display name to embed in the token")
	fs.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	bindEnv(fs)

	return cmd
}

func issueToken(secret, issuer, playerID, name string, ttl time.Duration) (string, error) {
	switch {
	case secret == "":
		return "", errors.New("--jwt-secret is required to sign tokens")
	case strings.TrimSpace(playerID) == "":
		return "", errors.New("player id is empty")
	case ttl <= 0:
		return "", fmt.Errorf("invalid --ttl (must be positive): %s", ttl)
	}

	v := auth.NewVerifier(secret, issuer)

	return v.Issue(auth.Identity{PlayerID: strings.TrimSpace(playerID), Name: displayName(name)}, ttl)
}
