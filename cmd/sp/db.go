package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/seatplan/internal/config"
	"github.com/zulandar/seatplan/internal/db"
	"github.com/zulandar/seatplan/internal/models"
	"github.com/zulandar/seatplan/internal/part"
	"gopkg.in/yaml.v3"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBSeedCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database and migrate all tables",
		Long:  "Creates the MySQL database when it does not exist (sqlite files are created on open) and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Connected to MySQL at %s:%d\n", cfg.Database.Host, cfg.Database.Port)
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	return nil
}

// rosterFile is the YAML roster accepted by "sp db seed".
type rosterFile struct {
	Members []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		Part       string `yaml:"part"`
		Height     int    `yaml:"height"`
		Experience int    `yaml:"experience"`
		Leader     bool   `yaml:"leader"`
		Active     *bool  `yaml:"active"`
	} `yaml:"members"`
}

func newDBSeedCmd() *cobra.Command {
	var configPath, file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import or update the roster from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBSeed(cmd, configPath, file)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().StringVarP(&file, "file", "f", "members.yaml", "roster file")
	return cmd
}

func loadRoster(path string) ([]models.Member, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	out := make([]models.Member, 0, len(rf.Members))
	seen := make(map[string]bool, len(rf.Members))
	for i, m := range rf.Members {
		if m.ID == "" || m.Name == "" {
			return nil, fmt.Errorf("roster entry %d: id and name are required", i+1)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("roster entry %d: duplicate id %q", i+1, m.ID)
		}
		seen[m.ID] = true
		p, err := part.Parse(m.Part)
		if err != nil {
			return nil, fmt.Errorf("roster entry %d: %w", i+1, err)
		}
		out = append(out, models.Member{
			ID:         m.ID,
			Name:       m.Name,
			Part:       string(p),
			Height:     m.Height,
			Experience: m.Experience,
			IsLeader:   m.Leader,
			Active:     m.Active == nil || *m.Active,
		})
	}
	return out, nil
}

func runDBSeed(cmd *cobra.Command, configPath, file string) error {
	members, err := loadRoster(file)
	if err != nil {
		return err
	}
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.SeedMembers(gormDB, members); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d members from %s\n", len(members), file)
	return nil
}
