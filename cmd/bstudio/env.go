package main

import (
	"fmt"
	"strings"

	"github.com/oukeidos/bstudio/internal/auth"
	"github.com/spf13/cobra"
)

var (
	saveToken   = auth.SaveToken
	deleteToken = auth.DeleteToken
)

// newEnvCmd manages the optional bearer token for a protected service.
// A bare `bstudio env` prints the status.
func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage the service token in the OS keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnvStatus(cmd)
		},
	}
	cmd.SetUsageTemplate(envUsageTemplate)

	actions := []struct {
		use, short string
		run        func(*cobra.Command) error
	}{
		{"setup", "Save the service token to the keychain (prompt only)", runEnvSetup},
		{"delete", "Delete the service token from the keychain", runEnvDelete},
		{"status", "Show token and endpoint status (default)", runEnvStatus},
	}
	for _, a := range actions {
		a := a
		sub := &cobra.Command{
			Use:   a.use,
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, _ []string) error { return a.run(cmd) },
		}
		sub.SetUsageTemplate(subcommandUsageTemplate)
		cmd.AddCommand(sub)
	}
	return cmd
}

// runEnvSetup never takes the token as an argument, so it stays out of
// shell history.
func runEnvSetup(cmd *cobra.Command) error {
	token, err := promptForToken("Service token: ")
	if err != nil {
		return fmt.Errorf("error reading token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("a token is required for setup")
	}
	if err := saveToken(token); err != nil {
		return fmt.Errorf("error saving token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Saved service token to keychain.")
	return nil
}

func runEnvDelete(cmd *cobra.Command) error {
	if err := deleteToken(); err != nil {
		return fmt.Errorf("error deleting token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Deleted service token from keychain.")
	return nil
}

func runEnvStatus(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Service URL: %s\n", loadConfig().ServiceURL)

	status := "Not Found (none needed for a local service)"
	switch {
	case hasToken():
		status = "Found (source=Keychain)"
	default:
		if token, ok := getEnvToken(); ok && token != "" {
			status = "Found (source=Environment Variable; disabled by default, use --allow-env)"
		}
	}
	fmt.Fprintf(out, "Service token: %s\n", status)
	return nil
}
