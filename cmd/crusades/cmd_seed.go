package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvvdotnet/crusades/internal/app/runtime"
	crusadesvc "github.com/vvvdotnet/crusades/internal/app/services/crusades"
	"github.com/vvvdotnet/crusades/internal/app/storage/sqlstore"
	"github.com/vvvdotnet/crusades/internal/config"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default crusades",
	Long: `Create every catalog crusade whose name is not taken yet.

The catalog is the built-in default set unless the config file lists
crusades of its own. Running seed twice creates nothing the second time.`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Driver == config.StoreMemory {
		return fmt.Errorf("STORE_DRIVER=memory cannot be seeded ahead of time")
	}
	log := newLogger(cfg)

	db, err := runtime.OpenDatabase(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := crusadesvc.New(sqlstore.New(db, log), log)
	if len(cfg.Catalog) > 0 {
		svc.SetCatalog(cfg.Catalog)
	}
	created, err := svc.SeedDefaults(cmd.Context())
	if err != nil {
		return err
	}
	for _, c := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "created %s crusade %q (%s)\n", c.Type, c.Name, c.ID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d crusades\n", len(created))
	return nil
}
