package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dpoeymirou/call-me-reminder/internal/client/api"
	"github.com/dpoeymirou/call-me-reminder/internal/client/reminders"
	"github.com/dpoeymirou/call-me-reminder/internal/shared/models"
)

func newListCmd(f *factory) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, _, err := f.stack()
			if err != nil {
				return err
			}
			filter, err := statusFilter(status)
			if err != nil {
				return err
			}
			items, err := store.List(cmd.Context(), filter)
			if err != nil {
				return describeErr(err)
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (scheduled, completed, failed)")
	return cmd
}

func newGetCmd(f *factory) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a reminder by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, _, err := f.stack()
			if err != nil {
				return err
			}
			rem, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return describeErr(err)
			}
			return printJSON(cmd.OutOrStdout(), rem)
		},
	}
}

func newCreateCmd(f *factory) *cobra.Command {
	var req models.CreateReminderRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a new call reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, _, err := f.stack()
			if err != nil {
				return err
			}
			rem, err := store.Create(cmd.Context(), req)
			if err != nil {
				return describeErr(err)
			}
			return printJSON(cmd.OutOrStdout(), rem)
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "Reminder title")
	cmd.Flags().StringVar(&req.Message, "message", "", "Message to deliver on the call")
	cmd.Flags().StringVar(&req.PhoneNumber, "phone", "", "Phone number in E.164 format")
	cmd.Flags().StringVar(&req.ScheduledTime, "time", "", "Local wall-clock time (2006-01-02T15:04)")
	cmd.Flags().StringVar(&req.Timezone, "timezone", "", "IANA timezone (e.g. America/New_York)")
	return cmd
}

func newUpdateCmd(f *factory) *cobra.Command {
	var title, message, phone, when, timezone string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, _, err := f.stack()
			if err != nil {
				return err
			}
			var req models.UpdateReminderRequest
			if cmd.Flags().Changed("title") {
				req.Title = &title
			}
			if cmd.Flags().Changed("message") {
				req.Message = &message
			}
			if cmd.Flags().Changed("phone") {
				req.PhoneNumber = &phone
			}
			if cmd.Flags().Changed("time") {
				req.ScheduledTime = &when
			}
			if cmd.Flags().Changed("timezone") {
				req.Timezone = &timezone
			}
			rem, err := store.Update(cmd.Context(), args[0], req)
			if err != nil {
				return describeErr(err)
			}
			return printJSON(cmd.OutOrStdout(), rem)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Reminder title")
	cmd.Flags().StringVar(&message, "message", "", "Message to deliver on the call")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number in E.164 format")
	cmd.Flags().StringVar(&when, "time", "", "Local wall-clock time (2006-01-02T15:04)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone (e.g. America/New_York)")
	return cmd
}

func newDeleteCmd(f *factory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, _, err := f.stack()
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return describeErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted")
			return nil
		},
	}
}

func statusFilter(s string) (*models.ReminderStatus, error) {
	if s == "" {
		return nil, nil
	}
	status := models.ReminderStatus(s)
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q (want scheduled, completed or failed)", s)
	}
	return &status, nil
}

// describeErr turns library failures into messages worth showing a person.
func describeErr(err error) error {
	var verr *reminders.ValidationError
	if errors.As(err, &verr) {
		msg := "invalid reminder:"
		for _, fe := range verr.Fields {
			msg += "\n  " + fe.Error()
		}
		return errors.New(msg)
	}
	if errors.Is(err, api.ErrUnauthorized) {
		return errors.New("unauthorized - run 'remindcall auth login' first")
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
