package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"remindme/internal/apikey"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keys",
		Aliases: []string{"key"},
		Short:   "Manage API keys",
	}
	cmd.AddCommand(newKeysListCmd(a), newKeysCreateCmd(a), newKeysRevokeCmd(a))
	return cmd
}

func newKeysListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(ctx context.Context, _ []string) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		keys, err := apikey.NewService(a.manager.Client()).List(ctx)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			printf(a.out, "No API keys.\n")
			return nil
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tCREATED")
		for _, k := range keys {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k.ID, k.Name, k.Prefix, k.CreatedAt.Local().Format(time.DateOnly))
		}
		return tw.Flush()
	})
	return cmd
}

func newKeysCreateCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the secret is shown once",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(ctx context.Context, _ []string) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		var err error
		if name, err = a.prompt(name, "Name"); err != nil {
			return err
		}
		k, err := apikey.NewService(a.manager.Client()).Create(ctx, name)
		if err != nil {
			return err
		}
		printf(a.out, "Created API key %s (%s).\n", k.ID, k.Name)
		printf(a.out, "Secret: %s\n", k.Secret)
		printf(a.out, "Store it now; it will not be shown again.\n")
		return nil
	})
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func newKeysRevokeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = run(a, func(ctx context.Context, args []string) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		if err := apikey.NewService(a.manager.Client()).Revoke(ctx, args[0]); err != nil {
			return err
		}
		printf(a.out, "Revoked API key %s.\n", args[0])
		return nil
	})
	return cmd
}
