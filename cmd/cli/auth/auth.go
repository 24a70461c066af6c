package auth

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/crucial707/postfeed/cmd/cli/api"
	"github.com/crucial707/postfeed/cmd/cli/config"
	"github.com/spf13/cobra"
)

// InitAuth registers signup, login, logout and status on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(signupCmd(), loginCmd(), logoutCmd(), statusCmd())
}

// prompt reads a line from in when value is empty.
func prompt(out io.Writer, in *bufio.Reader, label, value string) string {
	if value != "" {
		return value
	}
	fmt.Fprintf(out, "%s: ", label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

// ==========================
// Signup
// ==========================
func signupCmd() *cobra.Command {
	var email, name, password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			payload := map[string]string{
				"email":    prompt(cmd.OutOrStdout(), in, "Email", email),
				"name":     prompt(cmd.OutOrStdout(), in, "Name", name),
				"password": prompt(cmd.OutOrStdout(), in, "Password", password),
			}

			var out struct {
				Message string `json:"message"`
				UserID  string `json:"userId"`
			}
			if err := api.JSON("PUT", "/auth/signup", false, payload, &out); err != nil {
				return fmt.Errorf("signup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s id=%s. You can now login.\n", out.Message, out.UserID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

// ==========================
// Login (stores the token locally)
// ==========================
func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			payload := map[string]string{
				"email":    prompt(cmd.OutOrStdout(), in, "Email", email),
				"password": prompt(cmd.OutOrStdout(), in, "Password", password),
			}

			var out struct {
				Token  string `json:"token"`
				UserID string `json:"userId"`
			}
			if err := api.JSON("POST", "/auth/login", false, payload, &out); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if out.Token == "" {
				return fmt.Errorf("login succeeded but no token returned")
			}
			if err := config.SaveToken(out.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Login successful. Token stored locally.")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

// ==========================
// Logout
// ==========================
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := config.RemoveToken()
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "No user logged in.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully.")
			return nil
		},
	}
}

// ==========================
// Status (get / set)
// ==========================
func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show or change your status",
		Args:  cobra.NoArgs,
		RunE:  runGetStatus,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show your status",
			Args:  cobra.NoArgs,
			RunE:  runGetStatus,
		},
		&cobra.Command{
			Use:   "set <status>",
			Short: "Change your status",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var out struct {
					Message string `json:"message"`
				}
				payload := map[string]string{"status": strings.Join(args, " ")}
				if err := api.JSON("PATCH", "/auth/status", true, payload, &out); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out.Message)
				return nil
			},
		},
	)
	return cmd
}

func runGetStatus(cmd *cobra.Command, args []string) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := api.Do(api.Request{Method: "GET", Path: "/auth/status", Auth: true}, &out); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Status)
	return nil
}
