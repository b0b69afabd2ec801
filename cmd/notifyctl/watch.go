package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/saransh1220/novel-notify/pkg/realtime"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		userID string
		panel  int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream notifications as they arrive",
		Long: `Open a push channel and print notifications as they arrive.
The channel is retried on transport failures; watch exits with an error
once the retries are exhausted or the server rejects the token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				id, err := userFromToken(a.cfg.Token)
				if err != nil {
					return fmt.Errorf("watch: %w", err)
				}
				userID = id
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				outMu    sync.Mutex
				failOnce sync.Once
				failed   = make(chan struct{})
			)
			show := func(n realtime.Notification) {
				outMu.Lock()
				defer outMu.Unlock()
				printNotification(a.out, n)
			}

			session := realtime.NewHTTPSession(a.cfg.Server, realtime.TransportKind(a.cfg.Transport),
				realtime.WithSessionLogger(a.logger),
				realtime.OnNotification(show),
				realtime.WithSupervisorOptions(
					realtime.WithLogger(a.logger),
					realtime.WithSignalHandler(func(sig realtime.Signal) {
						a.logger.Info("Connection status changed", "status", string(sig))
						if sig == realtime.SignalPermanentlyFailed {
							failOnce.Do(func() { close(failed) })
						}
					}),
				),
			)
			defer session.Close()

			unsubscribe := session.Subscribe(func(s realtime.Snapshot) {
				a.logger.Debug("Unread count", "count", s.UnreadCount)
			})
			defer unsubscribe()

			session.Login(ctx, userID, a.cfg.Token)
			if panel > 0 {
				if err := session.OpenPanel(ctx, panel); err != nil {
					a.logger.Warn("Could not load recent notifications", "error", err)
				} else {
					for _, n := range session.Snapshot().Notifications {
						show(n)
					}
				}
			}
			a.logger.Info("Watching notifications", "user", userID, "unread", session.Snapshot().UnreadCount, "transport", a.cfg.Transport)

			select {
			case <-ctx.Done():
				return nil
			case <-failed:
				state := session.State()
				return fmt.Errorf("watch: connection failed after %d retries", state.RetryCount)
			}
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id for the session (defaults to the token's user_id claim)")
	cmd.Flags().IntVar(&panel, "recent", 0, "print this many recent notifications before streaming")
	return cmd
}
