package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dashfin/internal/auth"
	"dashfin/internal/jobs"
	"dashfin/internal/logger"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage dashboard users",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered users",
		RunE:  runUsersList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rehash",
		Short: "Hash any password still stored in plain text",
		RunE:  runUsersRehash,
	})
	return cmd
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := db.ListUsers(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TELEFONE\tNOME\tEMAIL\tSTATUS\tSENHA")
	for _, u := range users {
		senha := "bcrypt"
		if !auth.IsHashed(u.Senha) {
			senha = "texto"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.Telefone, u.Nome, u.Email, u.Status, senha)
	}
	return tw.Flush()
}

func runUsersRehash(cmd *cobra.Command, _ []string) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := logger.WithLogger(cmd.Context(), logger.Default())
	result, err := jobs.RehashPasswords(ctx, db, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d users checked, %d passwords rehashed\n", result.UsersChecked, result.UsersRehashed)
	return nil
}
