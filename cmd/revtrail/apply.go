package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/revtrail/revtrail"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Execute a revision's up SQL and record it as applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		if strings.TrimSpace(id) == "" {
			return errors.New("--id is required")
		}

		rev := &revtrail.Revision{RevisionID: id}
		if downID, _ := cmd.Flags().GetString("down-id"); downID != "" {
			rev.DownRevisionID = &downID
		}
		rev.Message, _ = cmd.Flags().GetString("message")
		rev.Tags, _ = cmd.Flags().GetStringSlice("tag")
		if author, _ := cmd.Flags().GetString("author"); author != "" {
			rev.Author = &author
		}
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			sql, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read up sql from %s: %w", file, err)
			}
			rev.UpSQL = string(sql)
		}

		driver, _, err := loadEngine()
		if err != nil {
			return err
		}
		n, err := driver.MigrateUp(rev)
		if err != nil {
			return err
		}
		fmt.Printf("applied %s (%d bookkeeping row)\n", rev.RevisionID, n)
		return nil
	},
}

var revertCmd = &cobra.Command{
	Use:   "revert",
	Short: "Execute a revision's down SQL and delete its record",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		if strings.TrimSpace(id) == "" {
			return errors.New("--id is required")
		}

		rev := &revtrail.Revision{RevisionID: id}
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			sql, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read down sql from %s: %w", file, err)
			}
			rev.DownSQL = string(sql)
		}

		driver, _, err := loadEngine()
		if err != nil {
			return err
		}
		n, err := driver.MigrateDown(rev)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Printf("revision %s was not applied; nothing to revert\n", rev.RevisionID)
			return nil
		}
		fmt.Printf("reverted %s (%d bookkeeping row)\n", rev.RevisionID, n)
		return nil
	},
}
