package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the revision tracking table",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, cfg, err := loadEngine()
		if err != nil {
			return err
		}
		if err := driver.CreateTrackingTable(); err != nil {
			return err
		}
		fmt.Printf("tracking table %s ready\n", cfg.Table())
		return nil
	},
}

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the revision tracking table and all recorded history",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, cfg, err := loadEngine()
		if err != nil {
			return err
		}
		if err := driver.DropTrackingTable(); err != nil {
			return err
		}
		fmt.Printf("tracking table %s dropped\n", cfg.Table())
		return nil
	},
}
