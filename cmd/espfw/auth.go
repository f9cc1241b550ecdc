package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/espfw/internal/backend"
	"github.com/muurk/espfw/internal/ui"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the backend",
	Long: `Log in to the backend and store the session token.

The password is read from the terminal without echo when --password is
not given.`,
	Example: `  espfw login --email admin@example.com`,
	Args:    cobra.NoArgs,
	RunE:    runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when empty)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	email := strings.TrimSpace(loginEmail)
	if email == "" {
		if email, err = readLine(a, "Email: "); err != nil {
			return err
		}
	}
	password := loginPassword
	if password == "" {
		if password, err = readPassword(a, "Password: "); err != nil {
			return err
		}
	}

	p := ui.NewPrinter(a.out)
	resp, err := a.client.Login(cmd.Context(), email, password)
	if err != nil {
		msg := backend.ServerMessage(err)
		if msg == "" {
			msg = backend.ShortMessage(err)
		}
		p.PrintError("Login failed", errors.New(msg), hints(err))
		return reportedError{err}
	}
	user := resp.User
	if err := a.guard.Login(resp.Token, &user); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	p.PrintSuccess("Logged in",
		ui.Param{Key: "User", Value: orDash(user.Name)},
		ui.Param{Key: "Email", Value: user.Email},
		ui.Param{Key: "Backend", Value: a.settings.BackendURL},
	)
	return nil
}

func readLine(a *app, prompt string) (string, error) {
	_, _ = fmt.Fprint(a.out, prompt)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func readPassword(a *app, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if stdin != os.Stdin || !term.IsTerminal(fd) {
		return readLine(a, prompt)
	}
	_, _ = fmt.Fprint(a.out, prompt)
	data, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(a.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(data), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		if err := a.guard.Logout(); err != nil {
			return err
		}
		ui.NewPrinter(a.out).PrintSuccess("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		u := a.guard.User()
		if !a.guard.LoggedIn() || u == nil {
			return errNotLoggedIn
		}
		ui.NewPrinter(a.out).PrintSuccess("Session",
			ui.Param{Key: "User", Value: orDash(u.Name)},
			ui.Param{Key: "Email", Value: u.Email},
			ui.Param{Key: "Role", Value: orDash(u.Role)},
			ui.Param{Key: "Backend", Value: a.settings.BackendURL},
		)
		return nil
	},
}
