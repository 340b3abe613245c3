// Command collabctl is a terminal client for the collaboration backend: sign
// in, read and acknowledge mention notifications and follow candidate threads.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"candidate-collab/internal/client"
	"candidate-collab/internal/config"
	"candidate-collab/internal/session"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	store  *session.SQLiteStore
	client *client.Client
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "collabctl",
		Short:         "Candidate notes and mention notifications from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	cmd.AddCommand(
		loginCmd(a),
		signupCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		notificationsCmd(a),
		readCmd(a),
		notesCmd(a),
		sendCmd(a),
		watchCmd(a),
	)
	return cmd
}

func (a *app) open(ctx context.Context) error {
	a.cfg = config.Load()

	store, err := session.NewSQLiteStore(a.cfg.Client.CredentialsPath)
	if err != nil {
		return err
	}
	a.store = store

	a.client = client.New(a.cfg.Client,
		client.WithCredentialStore(store),
		client.WithNotifier(session.NotifierFunc(func(message string) {
			color.Red("! %s", message)
		})),
	)
	return a.client.Restore(ctx)
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *app) requireUser() error {
	if a.client.User() == nil {
		return fmt.Errorf("not signed in, run collabctl login first")
	}
	return nil
}

// signalContext is cancelled on Ctrl-C.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
