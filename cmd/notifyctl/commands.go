package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/saransh1220/novel-notify/pkg/realtime"
	"github.com/spf13/cobra"
)

func printNotification(w io.Writer, n realtime.Notification) {
	marker := " "
	title := n.Title
	if !n.Read {
		marker = "*"
		title = unreadStyle.Render(title)
	}
	fmt.Fprintf(w, "%s %s  %s  %s\n", marker, n.ID, typeStyle.Render(string(n.Type)), title)
	if n.Message != "" {
		fmt.Fprintf(w, "    %s\n", n.Message)
	}
	if !n.CreatedAt.IsZero() {
		fmt.Fprintf(w, "    %s\n", n.CreatedAt.Local().Format(time.DateTime))
	}
}

func newListCmd(a *app) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size <= 0 {
				size = a.cfg.PageSize
			}
			list, err := a.api().ListNotifications(cmd.Context(), page, size)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "No notifications.")
				return nil
			}
			for _, n := range list {
				printNotification(a.out, n)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page")
	cmd.Flags().IntVar(&size, "size", 0, "page size (defaults to page_size from config)")
	return cmd
}

func newUnreadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print the unread notification count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := a.api().UnreadCount(cmd.Context())
			if err != nil {
				return fmt.Errorf("unread: %w", err)
			}
			fmt.Fprintln(a.out, count)
			return nil
		},
	}
}

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api().MarkRead(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("read: %w", err)
			}
			fmt.Fprintf(a.out, "Notification %s marked as read\n", args[0])
			return nil
		},
	}
}

func newReadAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api().MarkAllRead(cmd.Context()); err != nil {
				return fmt.Errorf("read-all: %w", err)
			}
			fmt.Fprintln(a.out, "All notifications marked as read")
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := a.api()
			var err error
			if admin {
				err = api.AdminDelete(cmd.Context(), args[0])
			} else {
				err = api.Delete(cmd.Context(), args[0])
			}
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			fmt.Fprintf(a.out, "Notification %s deleted\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "delete any user's notification (admin token required)")
	return cmd
}

func newPublishCmd(a *app) *cobra.Command {
	var req realtime.PublishRequest
	var kind, ref string
	cmd := &cobra.Command{
		Use:   "publish <title> <message>",
		Short: "Publish a notification to one user, or broadcast to all users",
		Long: `Publish a notification. With --user it goes to that user only;
without it a SYSTEM notification is broadcast to every user.
Requires an admin token.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title, req.Message = args[0], args[1]
			if kind != "" {
				t := realtime.NotificationType(strings.ToUpper(kind))
				if !t.Valid() {
					return fmt.Errorf("publish: unknown type %q", kind)
				}
				req.Type = t
			}
			if ref != "" {
				req.ReferenceID = &ref
			}
			res, err := a.api().Publish(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}
			fmt.Fprintf(a.out, "Created %d notification(s)\n", res.Created)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.UserID, "user", "", "recipient user id; omit to broadcast")
	cmd.Flags().StringVar(&kind, "type", "", "notification type, e.g. CHAPTER_UPDATE")
	cmd.Flags().StringVar(&ref, "ref", "", "reference id of the related book or chapter")
	return cmd
}
