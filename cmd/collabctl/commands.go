package main

import (
	"fmt"
	"strings"
	"time"

	"candidate-collab/internal/dto"
	"candidate-collab/internal/mention"
	"candidate-collab/internal/model"
	"candidate-collab/internal/notestream"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	bold      = color.New(color.Bold).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
	highlight = color.New(color.FgYellow, color.Bold).SprintFunc()
)

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			color.Green("Signed in as @%s", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func signupCmd(a *app) *cobra.Command {
	var req dto.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.client.Signup(cmd.Context(), req)
			if err != nil {
				return err
			}
			color.Green("Welcome, @%s", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Username others mention you by")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "Account password")
	for _, f := range []string{"username", "name", "email", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget the stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Logout(cmd.Context()); err != nil {
				return err
			}
			color.Green("Signed out")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			u := a.client.User()
			fmt.Printf("@%s (%s) %s\n", u.Username, u.Name, faint(u.Email))
			return nil
		},
	}
}

func notificationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"ls"},
		Short:   "List mention notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			if err := a.client.Notifications.Refresh(cmd.Context()); err != nil {
				return err
			}
			records := a.client.Notifications.Records()
			fmt.Printf("%d unread\n", a.client.Notifications.Unread())
			for _, r := range records {
				printRecord(r)
			}
			return nil
		},
	}
}

func readCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <noteId>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			if err := a.client.Notifications.Refresh(cmd.Context()); err != nil {
				return err
			}
			unread, err := a.client.Notifications.MarkRead(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			color.Green("Marked read, %d unread left", unread)
			return nil
		},
	}
}

func notesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <candidateId>",
		Short: "Print a candidate's note thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			matcher, err := a.client.Directory.Matcher(cmd.Context(), terminalMarker()...)
			if err != nil {
				return err
			}
			notes, err := a.client.API.Notes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, n := range notes {
				printNote(matcher, n)
			}
			return nil
		},
	}
}

func sendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <candidateId> <text...>",
		Short: "Add a note to a candidate thread",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			note, err := a.client.API.CreateNote(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", faint(note.ID), color.GreenString("sent"))
			return nil
		},
	}
}

func watchCmd(a *app) *cobra.Command {
	var candidates []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and print notifications and live notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			matcher, err := a.client.Directory.Matcher(ctx, terminalMarker()...)
			if err != nil {
				return err
			}

			a.client.Notifications.OnUnreadChange(func(unread int) {
				fmt.Printf("%s %d unread\n", bold("[notifications]"), unread)
			})

			for _, id := range candidates {
				stream, err := a.client.OpenThread(ctx, id,
					notestream.OnAppend(func(n model.Note) { printNote(matcher, n) }),
					notestream.OnMention(func(n model.Note) {
						color.Magenta("You were mentioned by @%s on %s", n.SenderUsername, n.CandidateID)
					}),
				)
				if err != nil {
					return err
				}
				defer stream.Close()
				for _, n := range stream.Notes() {
					printNote(matcher, n)
				}
			}

			color.Cyan("Watching as @%s, Ctrl-C to stop", a.client.User().Username)
			return a.client.Run(ctx)
		},
	}
	cmd.Flags().StringSliceVar(&candidates, "candidate", nil, "Candidate thread to follow (repeatable)")
	return cmd
}

// terminalMarker renders mentions in color and leaves the rest of the text alone.
func terminalMarker() []mention.Option {
	return []mention.Option{
		mention.WithMarker(func(m string) string { return highlight(m) }),
		mention.WithTextEscaper(func(s string) string { return s }),
	}
}

func printNote(m *mention.Matcher, n model.Note) {
	fmt.Printf("%s %s %s\n", faint(n.CreatedAt.Local().Format(time.Kitchen)), bold("@"+n.SenderUsername), m.Highlight(n.Content))
}

func printRecord(r model.NotificationRecord) {
	marker := " "
	line := fmt.Sprintf("@%s on %s: %s", r.SenderUsername, r.CandidateName, r.Content)
	if !r.IsRead {
		marker = color.BlueString("*")
		line = bold(line)
	}
	fmt.Printf("%s %s %s\n", marker, faint(r.NoteID), line)
}
