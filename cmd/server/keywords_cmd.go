package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashish9731/email-responder/internal/storage"
)

// CreateKeywordsCommand creates the keyword management commands
func CreateKeywordsCommand() *cobra.Command {
	keywordsCmd := &cobra.Command{
		Use:   "keywords",
		Short: "Manage trigger keywords",
		Long:  `List, add and remove the keywords that open a case when they appear in an email`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List keywords",
		Args:  cobra.NoArgs,
		RunE:  listKeywords,
	}

	var inactive bool
	addCmd := &cobra.Command{
		Use:   "add [keyword]",
		Short: "Add a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addKeyword(cmd.Context(), args[0], !inactive)
		},
	}
	addCmd.Flags().BoolVar(&inactive, "inactive", false, "add the keyword switched off")

	removeCmd := &cobra.Command{
		Use:   "remove [keyword]",
		Short: "Remove a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return removeKeyword(cmd.Context(), args[0])
		},
	}

	keywordsCmd.AddCommand(listCmd)
	keywordsCmd.AddCommand(addCmd)
	keywordsCmd.AddCommand(removeCmd)

	return keywordsCmd
}

func openStore(ctx context.Context) (storage.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Type == "memory" || cfg.Storage.Type == "" {
		return nil, fmt.Errorf("storage type is memory; keyword changes would not outlive this command")
	}
	return storage.New(ctx, cfg, log)
}

func listKeywords(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	keywords, err := store.ListKeywords(cmd.Context())
	if err != nil {
		return err
	}
	if len(keywords) == 0 {
		fmt.Println("No keywords configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEYWORD\tACTIVE\tCREATED")
	for _, k := range keywords {
		fmt.Fprintf(w, "%s\t%v\t%s\n", k.Keyword, k.IsActive, k.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func addKeyword(ctx context.Context, text string, active bool) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	kw, err := store.AddKeyword(ctx, text, active)
	if err != nil {
		return fmt.Errorf("failed to add keyword: %w", err)
	}
	fmt.Printf("Keyword %q added (active: %v)\n", kw.Keyword, kw.IsActive)
	return nil
}

func removeKeyword(ctx context.Context, text string) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	kw, err := store.GetKeywordByText(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to find keyword %q: %w", text, err)
	}
	if err := store.RemoveKeyword(ctx, kw.ID); err != nil {
		return fmt.Errorf("failed to remove keyword: %w", err)
	}
	fmt.Printf("Keyword %q removed\n", kw.Keyword)
	return nil
}
