package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dg-agenda/internal/rolegate"
	"dg-agenda/internal/session"
)

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				fmt.Fprint(a.errOut, "password: ")
				line, err := bufio.NewReader(a.in).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			d, err := a.remote()
			if err != nil {
				return err
			}
			s, err := d.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := a.sessions.Save(s); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s (%s)\n", s.DisplayName, s.Role)
			if home := rolegate.HomeOf(s.Role); home != "" {
				fmt.Fprintf(a.out, "Next: agenda %s list\n", home)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.sessions.Load()
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					a.log.Warn().Err(err).Msg("stored session unreadable")
				}
				fmt.Fprintln(a.out, "Not signed in")
				return a.sessions.Clear()
			}
			d, err := a.remote()
			if err != nil {
				return err
			}
			// forget the session locally even if the server cannot be told
			if err := d.Logout(cmd.Context(), s); err != nil {
				a.log.Warn().Err(err).Msg("server logout failed")
			}
			if err := a.sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			s, err := a.sessions.Load()
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					a.log.Warn().Err(err).Msg("stored session unreadable")
				}
				fmt.Fprintln(a.out, "Not signed in")
				return nil
			}
			fmt.Fprintf(a.out, "%s (%s) %s\n", s.Username, s.Role, s.DisplayName)
			return nil
		},
	}
}
