package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"remindme/internal/api"
	"remindme/internal/recurrence"
	"remindme/internal/reminder"
)

// localLayout is accepted by --at besides RFC 3339; it is read in --timezone.
const localLayout = "2006-01-02 15:04"

func newRemindersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reminders",
		Aliases: []string{"reminder"},
		Short:   "List and create reminders",
	}
	cmd.AddCommand(newRemindersListCmd(a), newRemindersCreateCmd(a))
	return cmd
}

func newRemindersListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your reminders",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(ctx context.Context, _ []string) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		list, err := reminder.NewService(a.manager.Client(), nil).List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			printf(a.out, "No reminders.\n")
			return nil
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tREMIND AT\tREPEATS")
		for _, r := range list {
			at := r.RemindAt
			if loc, err := time.LoadLocation(r.Timezone); err == nil {
				at = at.In(loc)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Title, at.Format(localLayout+" MST"),
				recurrence.Label(recurrence.Classify(r.Recurrence)))
		}
		return tw.Flush()
	})
	return cmd
}

func newRemindersCreateCmd(a *app) *cobra.Command {
	var (
		in     reminder.Input
		at     string
		repeat string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a reminder",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(ctx context.Context, _ []string) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		var err error
		if in.Title, err = a.prompt(in.Title, "Title"); err != nil {
			return err
		}
		if at, err = a.prompt(at, "When (YYYY-MM-DD HH:MM)"); err != nil {
			return err
		}
		if in.RemindAt, err = parseRemindAt(at, in.Timezone); err != nil {
			return err
		}
		if in.Recurrence, err = parseRecurrence(repeat); err != nil {
			return err
		}
		r, err := reminder.NewService(a.manager.Client(), nil).Create(ctx, in)
		if err != nil {
			return err
		}
		printf(a.out, "Created reminder %s: %q (%s)\n", r.ID, r.Title,
			recurrence.Label(recurrence.Classify(r.Recurrence)))
		return nil
	})
	cmd.Flags().StringVar(&in.Title, "title", "", "reminder title")
	cmd.Flags().StringVar(&in.Description, "description", "", "optional details")
	cmd.Flags().StringVar(&at, "at", "", "when to remind: RFC 3339 or \""+localLayout+"\" in --timezone")
	cmd.Flags().StringVar(&in.Timezone, "timezone", "", "IANA time zone (default UTC)")
	cmd.Flags().StringVar(&repeat, "repeat", "ONCE", "recurrence: tag (ONCE, DAILY, WORKDAYS, ...) or code 0-7")
	return cmd
}

func parseRemindAt(s, timezone string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, api.Invalid("timezone", "is not a known IANA time zone")
		}
		loc = l
	}
	t, err := time.ParseInLocation(localLayout, s, loc)
	if err != nil {
		return time.Time{}, api.Invalid("remind_at", "must be RFC 3339 or "+localLayout)
	}
	return t, nil
}

// parseRecurrence reads a tag in any case or an integer code.
func parseRecurrence(s string) (recurrence.Code, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return recurrence.Once, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if c := recurrence.Code(n); c.Valid() {
			return c, nil
		}
		return 0, api.Invalid("recurrence", "must be a code between 0 and 7")
	}
	if c, ok := recurrence.ParseTag(strings.ToUpper(s)); ok {
		return c, nil
	}
	return 0, api.Invalid("recurrence", "is not a known repeat option")
}
