package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/siva27neelam/story-telling/internal/app"
	"github.com/siva27neelam/story-telling/pkg/auth"
	"github.com/siva27neelam/story-telling/pkg/enums"
)

func newTokenCommand() *cobra.Command {
	var subject string
	var role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator JWT for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := enums.ParseOperatorRole(role)
			if err != nil {
				return err
			}
			cfg, _, err := app.LoadConfig("imagectl")
			if err != nil {
				return err
			}
			token, err := auth.MintOperatorToken(cfg.JWT, time.Now(), subject, parsed)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Operator identity")
	cmd.Flags().StringVar(&role, "role", string(enums.OperatorRoleViewer), "admin or viewer")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
