package main

import (
	"fmt"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/config"
	"github.com/spf13/cobra"
)

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Rebuild occupancy from the database and report over-capacity days",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Storage != config.StoragePostgres {
				return fmt.Errorf("verify needs STORAGE=%s", config.StoragePostgres)
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if len(a.overbooked) == 0 {
				fmt.Println("No room is over capacity.")
				return nil
			}

			fmt.Printf("%-36s  %-10s  %8s  %8s\n", "Room", "Day", "Capacity", "Occupied")
			for _, e := range a.overbooked {
				fmt.Printf("%-36s  %-10s  %8d  %8d\n", e.RoomID, e.Day, e.Capacity, e.Occupied)
			}
			return fmt.Errorf("%d over-capacity room-days", len(a.overbooked))
		},
	}
}
