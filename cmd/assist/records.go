package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/assist/internal/factory"
)

var (
	includeDone  bool
	noteCategory string
)

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the project's open session and consolidate it into notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		orch := rt.Orchestrator()
		sess, err := orch.OpenSession(ctx, projectID)
		if err != nil {
			return err
		}
		res, err := orch.EndSession(ctx, projectID, sess.ID)
		if err != nil {
			return err
		}
		printEnd(cmd.OutOrStdout(), res)
		return nil
	},
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List the project's work items",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		return printItems(ctx, rt, cmd.OutOrStdout(), includeDone)
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "List the project's notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		notes, err := rt.Store.ListNotes(ctx, projectID, noteCategory)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(notes) == 0 {
			fmt.Fprintln(out, "No notes yet.")
			return nil
		}
		for _, n := range notes {
			marker := ""
			if n.Consolidated {
				marker = fmt.Sprintf(" (consolidated, v%d)", n.Version())
			}
			fmt.Fprintf(out, "%s [%s]%s\n%s\n\n", n.ID, n.Category, marker, indent(n.FullText()))
		}
		return nil
	},
}

func init() {
	itemsCmd.Flags().BoolVar(&includeDone, "all", false, "Include done work items")
	notesCmd.Flags().StringVar(&noteCategory, "category", "", "Only show notes in this category")
}

func printItems(ctx context.Context, rt *factory.Runtime, out io.Writer, all bool) error {
	items, err := rt.Store.ListWorkItems(ctx, projectID, all)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "No work items.")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(out, "%s  %-11s %-6s %s\n", it.ID, it.Status, it.Priority, it.Title)
	}
	return nil
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n  ")
}
