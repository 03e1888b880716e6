package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpoeymirou/call-me-reminder/internal/client/live"
)

// newWatchCmd keeps a live view of the reminder list. The update channel
// invalidates the cache when the server pushes a status change; the loop
// here only rereads the cache and reprints when the data moved. Connection
// trouble never surfaces past a log line.
func newWatchCmd(f *factory) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow reminder status changes in real time",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, c, _, err := f.stack()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			channel := live.New(f.serverURL, c, f.logger())
			channel.SetReconnectDelay(f.reconnectDelay)
			channel.Start()
			defer channel.Stop()

			var last []byte
			render := func() error {
				items, err := store.List(ctx, nil)
				if err != nil {
					return describeErr(err)
				}
				buf := new(bytes.Buffer)
				enc := json.NewEncoder(buf)
				enc.SetIndent("", "  ")
				if err := enc.Encode(items); err != nil {
					return err
				}
				if !bytes.Equal(buf.Bytes(), last) {
					last = append(last[:0], buf.Bytes()...)
					fmt.Fprintf(cmd.OutOrStdout(), "--- %s\n%s", time.Now().Format(time.RFC3339), buf.String())
				}
				return nil
			}
			if err := render(); err != nil {
				return err
			}

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(cmd.OutOrStdout(), "watch stopped")
					return nil
				case <-ticker.C:
					// Served from cache unless the channel invalidated it,
					// so the steady state costs no network traffic.
					if err := render(); err != nil && ctx.Err() == nil {
						f.logger().Warn("watch refresh failed", "error", err)
					}
				}
			}
		},
	}
}
