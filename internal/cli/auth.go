package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/schoolroster/roster-client/internal/api"
	"github.com/schoolroster/roster-client/internal/core"
	"github.com/schoolroster/roster-client/internal/models"
	"github.com/schoolroster/roster-client/internal/throttle"
	"github.com/schoolroster/roster-client/internal/validation"
)

// newLoginCmd creates the 'login' command.
func newLoginCmd() *cobra.Command {
	var username string
	var noWait bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session token",
		Long: `Sign in to the roster service. The password is read without echo.

The session token is saved to the token file and reused by later commands
until 'roster logout' or until the server rejects it.

When the server refuses logins after too many attempts, the remaining
lockout is counted down before the command exits (skip with --no-wait).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := startEngine(cmd, "")
			if err != nil {
				return err
			}
			defer engine.Stop()

			if username == "" {
				if username, err = promptLine(cmd, "Username: "); err != nil {
					return err
				}
			}
			password, err := promptPassword(cmd, "Password: ")
			if err != nil {
				return err
			}

			machine := engine.Throttle()
			err = machine.Submit(GetContext(), models.Credentials{Username: username, Password: password})
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", username)
				return nil
			}
			if validation.IsValidationError(err) {
				return err
			}

			snap := machine.Snapshot()
			if snap.State == throttle.Blocked && !noWait {
				waitForUnblock(GetContext(), cmd, engine)
			}
			if snap.Message != "" {
				return errors.New(snap.Message)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when omitted)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Exit immediately when logins are blocked")

	return cmd
}

// waitForUnblock prints the lockout countdown until the throttle is idle again.
func waitForUnblock(ctx context.Context, cmd *cobra.Command, engine *core.Engine) {
	ch := engine.Events().Subscribe(throttle.EventThrottleChanged)
	defer engine.Events().Unsubscribe(throttle.EventThrottleChanged, ch)

	out := cmd.ErrOrStderr()
	remaining := engine.Throttle().Snapshot().RemainingSeconds
	for remaining > 0 {
		fmt.Fprintf(out, "\rToo many login attempts. Try again in %ds ", remaining)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return
		case ev, ok := <-ch:
			if !ok {
				fmt.Fprintln(out)
				return
			}
			if changed, ok := ev.(*throttle.ThrottleChangedEvent); ok {
				remaining = changed.RemainingSeconds
				if changed.State != throttle.Blocked {
					remaining = 0
				}
			}
		case <-time.After(2 * time.Second):
			// Resync in case a tick was dropped
			remaining = engine.Throttle().Snapshot().RemainingSeconds
		}
	}
	fmt.Fprintf(out, "\rYou can try to sign in again.%20s\n", "")
}

// newLogoutCmd creates the 'logout' command.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the saved session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := startEngine(cmd, "")
			if err != nil {
				return err
			}
			defer engine.Stop()

			if !engine.Session().Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			if err := engine.Session().Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

// newRegisterCmd creates the 'register' command.
func newRegisterCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account on the roster service.

Usernames are 3 to 20 characters; passwords at least 6.
Registering does not sign you in; run 'roster login' afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(cmd, "")
			if err != nil {
				return err
			}
			defer engine.Stop()

			if username == "" {
				if username, err = promptLine(cmd, "Username: "); err != nil {
					return err
				}
			}
			password, err := promptPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			again, err := promptPassword(cmd, "Confirm password: ")
			if err != nil {
				return err
			}
			if password != again {
				return &validation.Error{Field: "password", Message: "does not match the confirmation"}
			}

			req := models.RegisterRequest{Username: username, Password: password}
			if err := validation.RegisterRequest(req); err != nil {
				return err
			}

			message, err := engine.API().Register(GetContext(), req)
			if err != nil {
				var conflict *api.ConflictError
				if errors.As(err, &conflict) {
					return errors.New("Username already exists")
				}
				if msg := api.Message(err); msg != "" {
					return errors.New(msg)
				}
				return err
			}
			if message == "" {
				message = "User registered successfully"
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when omitted)")

	return cmd
}

// newStatusCmd creates the 'status' command.
func newStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the server and whether a session is saved",
		Long: `Show which server is configured and whether a session token is saved.

With --check the token is tried against the server; a rejected token is
removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := startEngine(cmd, "")
			if err != nil {
				return err
			}
			defer engine.Stop()

			out := cmd.OutOrStdout()
			cfg := engine.GetConfig()
			fmt.Fprintf(out, "Server:     %s\n", cfg.BaseURL())
			fmt.Fprintf(out, "Token file: %s\n", cfg.ResolveTokenFile())

			if !engine.Session().Authenticated() {
				fmt.Fprintln(out, "Session:    signed out")
				return nil
			}
			if !check {
				fmt.Fprintln(out, "Session:    signed in")
				return nil
			}

			_, err = engine.API().ListStudents(GetContext(), models.ListQuery{Page: 0, Size: 1})
			switch {
			case err == nil:
				fmt.Fprintln(out, "Session:    signed in (verified)")
			case errors.Is(err, api.ErrUnauthorized):
				fmt.Fprintln(out, "Session:    expired (token removed)")
			default:
				fmt.Fprintln(out, "Session:    signed in (server unreachable)")
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Verify the token with the server")

	return cmd
}
