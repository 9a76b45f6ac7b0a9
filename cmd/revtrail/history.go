package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/revtrail/revtrail"
	"github.com/spf13/cobra"
)

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Show the most recently applied revision",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, _, err := loadEngine()
		if err != nil {
			return err
		}
		rev, err := driver.GetHeadRevision()
		if err != nil {
			return err
		}
		if rev == nil {
			fmt.Println("no revisions applied")
			return nil
		}
		printRevision(rev)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List applied revisions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, _, err := loadEngine()
		if err != nil {
			return err
		}

		var filter revtrail.ListFilter
		if author, _ := cmd.Flags().GetString("author"); author != "" {
			filter.Author = &author
		}
		if tags, _ := cmd.Flags().GetStringSlice("tag"); len(tags) > 0 {
			filter.Tags = tags
		}
		if since, _ := cmd.Flags().GetString("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return fmt.Errorf("invalid --since value %q: %w", since, err)
			}
			filter.MinCreatedAt = &t
		}

		revisions, err := driver.ListMigrations(filter)
		if err != nil {
			return err
		}
		if len(revisions) == 0 {
			fmt.Println("no revisions match")
			return nil
		}
		for i := range revisions {
			printRevision(&revisions[i])
		}
		return nil
	},
}

func printRevision(rev *revtrail.Revision) {
	author := "-"
	if rev.Author != nil {
		author = *rev.Author
	}
	tags := "-"
	if len(rev.Tags) > 0 {
		tags = strings.Join(rev.Tags, ",")
	}
	fmt.Printf("%s  %s  author=%s  tags=%s  %s\n",
		rev.RevisionID,
		rev.CreatedAt.Format(time.RFC3339),
		author,
		tags,
		rev.Message,
	)
}
