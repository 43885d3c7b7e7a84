package main

import (
	"github.com/spf13/cobra"

	"github.com/taskeroo/taskeroo/internal/auth"
	"github.com/taskeroo/taskeroo/internal/display"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Gmail credentials",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Gmail, reusing a valid cached token",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvider(cmd)
		if err != nil {
			return err
		}
		if _, err := p.Authenticate(cmd.Context()); err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, map[string]string{"status": "success"})
		}
		display.SuccessMsg(cmd.OutOrStdout(), "Authentication successful. Credentials saved.")
		return nil
	},
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the cached token if it has expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvider(cmd)
		if err != nil {
			return err
		}
		status, err := p.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, map[string]string{"status": status.String()})
		}

		out := cmd.OutOrStdout()
		switch status {
		case auth.StillValid:
			display.SuccessMsg(out, "Token is still valid and does not need refresh.")
		case auth.Refreshed:
			display.SuccessMsg(out, "Token refreshed successfully.")
		default:
			display.ErrorMsg(out, "No usable token. Run 'taskeroo auth login'.")
		}
		return nil
	},
}

var authResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the cached token",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvider(cmd)
		if err != nil {
			return err
		}
		existed, err := p.Reset()
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, map[string]bool{"removed": existed})
		}
		if existed {
			display.SuccessMsg(cmd.OutOrStdout(), "Token removed. You will need to login again.")
		} else {
			display.SubHeader(cmd.OutOrStdout(), "No cached token found.")
		}
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd, authRefreshCmd, authResetCmd)
	rootCmd.AddCommand(authCmd)
}
