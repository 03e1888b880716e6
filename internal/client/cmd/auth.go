package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd(f *factory) *cobra.Command {
	cmd := &cobra.Command{Use: "auth", Short: "Authentication commands"}
	cmd.AddCommand(newLoginCmd(f))
	cmd.AddCommand(newLogoutCmd(f))
	cmd.AddCommand(newStatusCmd(f))
	return cmd
}

func newLoginCmd(f *factory) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := f.session()
			if err != nil {
				return err
			}
			if password == "" {
				pw, err := promptPassword(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = string(pw)
			}
			client := f.apiClient(sess)
			tokens, err := client.Login(cmd.Context(), password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := sess.SetToken(tokens.AccessToken); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(f *factory) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := f.session()
			if err != nil {
				return err
			}
			sess.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newStatusCmd(f *factory) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := f.session()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session:", sess.State())
			if exp, ok := sess.ExpiresAt(); ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Token expires:", exp.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func promptPassword(cmd *cobra.Command, prompt string) ([]byte, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	return pass, err
}
