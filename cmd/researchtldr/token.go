package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryosukesatoh/researchtldr/internal/auth"
	"github.com/ryosukesatoh/researchtldr/internal/store"
)

func newTokenCmd(c *cli) *cobra.Command {
	var u store.User
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create or update a user and print a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(c.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.UpsertUser(cmd.Context(), u); err != nil {
				return err
			}
			m, err := auth.NewManager(c.cfg.Server.JWTSecret, c.cfg.Server.SessionTTL)
			if err != nil {
				return err
			}
			token, err := m.Sign(u.Sub, u.Email, u.Name, u.Picture)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&u.Sub, "sub", "", "stable user id")
	f.StringVar(&u.Email, "email", "", "email address")
	f.StringVar(&u.Name, "name", "", "display name")
	f.StringVar(&u.Picture, "picture", "", "avatar URL")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
