package cli

import (
	"github.com/spf13/cobra"
)

func newDocumentCmd(factory clientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "document",
		Aliases: []string{"documents"},
		Short:   "Review documents",
	}

	cmd.AddCommand(newDocumentStatusCmd(factory, "approve", "Mark a document APPROVED", "APPROVED"))
	cmd.AddCommand(newDocumentStatusCmd(factory, "clear", "Reset a document to NONE", "NONE"))
	cmd.AddCommand(newDocumentListCmd(factory))
	return cmd
}

func newDocumentStatusCmd(factory clientFactory, use, short, status string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <documentID>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			documentID, err := parseID("document id", args[0])
			if err != nil {
				return err
			}
			client, err := factory()
			if err != nil {
				return err
			}
			document, err := client.SetDocumentStatus(cmd.Context(), documentID, status)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), document)
		},
	}
}

func newDocumentListCmd(factory clientFactory) *cobra.Command {
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "list <path>",
		Short: "List the documents stored at a directory path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := factory()
			if err != nil {
				return err
			}
			result, err := client.ListDirectory(cmd.Context(), args[0], page, perPage)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "documents per page")
	return cmd
}
