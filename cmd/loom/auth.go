package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/auth"
)

func loadCredentialStore() (*auth.CredentialStoreData, string, error) {
	path := defaultCredentialStorePath()
	key := os.Getenv("LOOM_CREDENTIAL_KEY")
	mode := auth.ResolveEncryptionMode(auth.EncryptionAuto, key)
	store, err := auth.Load(path, mode, key)
	return store, key, err
}

// buildAuthCmd exposes the Credential Store and Auth Resolver over the CLI:
// status shows the per-provider/mode resolution, login/logout mutate the
// store.
func buildAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect and manage provider credentials",
	}
	cmd.AddCommand(buildAuthStatusCmd(), buildAuthLoginCmd(), buildAuthLogoutCmd())
	return cmd
}

func buildAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show resolved auth status for every known provider/mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := loadCredentialStore()
			if err != nil {
				return err
			}

			providers := []auth.Provider{auth.ProviderAnthropic, auth.ProviderOpenAI, auth.ProviderGoogle}
			modes := []auth.Mode{auth.ModeAPIKey, auth.ModeOAuthToken, auth.ModeSessionToken, auth.ModeADC}
			opts := auth.ResolveOptions{BackendCLIEnabled: true}

			for _, provider := range providers {
				for _, mode := range modes {
					row := auth.Resolve(store, provider, mode, opts)
					if !row.ModeSupported {
						continue
					}
					fmt.Printf("%-10s %-14s available=%-5v state=%-24s source=%s\n",
						provider, mode, row.Available, row.State, row.Source)
				}
			}
			return nil
		},
	}
}

func buildAuthLoginCmd() *cobra.Command {
	var apiKey string
	cmd := &cobra.Command{
		Use:   "login <provider>",
		Short: "Store an API key credential for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := strings.ToLower(args[0])
			if apiKey == "" {
				return fmt.Errorf("--api-key is required")
			}
			store, key, err := loadCredentialStore()
			if err != nil {
				return err
			}
			store.Providers[provider] = auth.ProviderCredentialRecord{
				AuthMethod:  auth.AuthAPIKey,
				AccessToken: apiKey,
			}
			if err := auth.Save(defaultCredentialStorePath(), store, key); err != nil {
				return fmt.Errorf("save credential store: %w", err)
			}
			fmt.Printf("stored api_key credential for %s\n", provider)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key to store")
	return cmd
}

func buildAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <provider>",
		Short: "Revoke a provider's stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := strings.ToLower(args[0])
			store, key, err := loadCredentialStore()
			if err != nil {
				return err
			}
			rec, ok := store.Providers[provider]
			if !ok {
				return fmt.Errorf("no stored credential for provider %s", provider)
			}
			rec.Revoked = true
			store.Providers[provider] = rec
			if err := auth.Save(defaultCredentialStorePath(), store, key); err != nil {
				return fmt.Errorf("save credential store: %w", err)
			}
			fmt.Printf("revoked credential for %s\n", provider)
			return nil
		},
	}
}
