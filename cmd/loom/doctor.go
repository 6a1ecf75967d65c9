package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/channels"
	"github.com/loomrun/loom/internal/doctor"
)

// buildDoctorCmd runs the diagnostics/repair surface: config migrations,
// workspace bootstrap repair, channel policy checks, and a security audit.
func buildDoctorCmd() *cobra.Command {
	var (
		repair bool
		apply  bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose and optionally repair the local loom installation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			raw, err := doctor.LoadRawConfig(configPath)
			if err != nil {
				return fmt.Errorf("load raw config: %w", err)
			}
			migration, err := doctor.ApplyConfigMigrations(raw)
			if err != nil {
				return fmt.Errorf("apply config migrations: %w", err)
			}
			if len(migration.Applied) > 0 {
				fmt.Printf("config migrations available: %v (v%d -> v%d)\n", migration.Applied, migration.FromVersion, migration.ToVersion)
				if apply {
					if _, err := doctor.BackupConfig(configPath); err != nil {
						return fmt.Errorf("backup config before migrating: %w", err)
					}
					if err := doctor.WriteRawConfig(configPath, raw); err != nil {
						return fmt.Errorf("write migrated config: %w", err)
					}
					fmt.Println("config migrated; backup written alongside it")
				}
			}

			for _, issue := range doctor.CheckChannelPolicies(cfg) {
				fmt.Println("policy:", issue)
			}

			registry := channels.NewRegistry()
			for _, probe := range doctor.ProbeChannelHealth(context.Background(), registry) {
				fmt.Printf("channel %s: %+v\n", probe.Channel, probe.Status)
			}

			audit := doctor.AuditSecurity(cfg, configPath)
			for _, finding := range audit.Findings {
				fmt.Printf("[%s] %s\n", finding.Severity, finding.Message)
			}

			if repair {
				result, err := doctor.RepairWorkspace(cfg)
				if err != nil {
					return fmt.Errorf("repair workspace: %w", err)
				}
				fmt.Printf("workspace repair: created %v, skipped %v\n", result.Created, result.Skipped)

				if content, created, err := doctor.RepairHeartbeat(cfg, configPath); err != nil {
					return fmt.Errorf("repair heartbeat: %w", err)
				} else if created {
					fmt.Printf("heartbeat file seeded (%d bytes)\n", len(content))
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Apply workspace/heartbeat repairs in addition to reporting")
	cmd.Flags().BoolVar(&apply, "apply-migrations", false, "Write pending config migrations to disk (a backup is taken first)")
	return cmd
}
