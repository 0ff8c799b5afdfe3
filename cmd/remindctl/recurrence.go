package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"remindme/internal/recurrence"
)

func newRecurrenceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "recurrence [value...]",
		Short:       "Show the display key and label for recurrence codes or tags",
		Long:        "With no arguments, lists the eight recurrence codes. Numeric arguments are read as codes, anything else as a tag.",
		Annotations: map[string]string{annotationOffline: "true"},
	}
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		return printRecurrence(a, args)
	}
	return cmd
}

func printRecurrence(a *app, args []string) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VALUE\tKEY\tLABEL")
	if len(args) == 0 {
		for _, c := range recurrence.All() {
			fmt.Fprintf(tw, "%d %s\t%s\t%s\n", int(c), c, c.Key(), recurrence.Label(c.Key()))
		}
		return tw.Flush()
	}
	for _, arg := range args {
		var v any = arg
		if n, err := strconv.Atoi(strings.TrimSpace(arg)); err == nil {
			v = n
		}
		k := recurrence.Classify(v)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", arg, k, recurrence.Label(k))
	}
	return tw.Flush()
}
