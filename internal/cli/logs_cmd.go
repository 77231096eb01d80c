package cli

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/noah-isme/docflow-api/internal/dto"
)

func newLogsCmd(factory clientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Read and append audit entries",
	}

	cmd.AddCommand(newLogsListCmd(factory))
	cmd.AddCommand(newLogsPageCmd(factory))
	cmd.AddCommand(newLogsVerifyCmd(factory))
	cmd.AddCommand(newLogsRecordCmd(factory))
	return cmd
}

func newLogsListCmd(factory clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list <clientID>",
		Short: "Print every audit entry of a client, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID("client id", args[0])
			if err != nil {
				return err
			}
			client, err := factory()
			if err != nil {
				return err
			}
			entries, err := client.ListActivity(cmd.Context(), clientID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
}

func newLogsPageCmd(factory clientFactory) *cobra.Command {
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "page <clientID>",
		Short: "Print one page of a client's audit entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID("client id", args[0])
			if err != nil {
				return err
			}
			client, err := factory()
			if err != nil {
				return err
			}
			result, err := client.PaginateActivity(cmd.Context(), clientID, page, perPage)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "entries per page")
	return cmd
}

func newLogsVerifyCmd(factory clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <clientID>",
		Short: "Check the hash chain of a client's audit trail (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID("client id", args[0])
			if err != nil {
				return err
			}
			client, err := factory()
			if err != nil {
				return err
			}
			result, err := client.VerifyChain(cmd.Context(), clientID)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Valid {
				return errors.Errorf("audit chain of client %d is broken: %s", clientID, result.Reason)
			}
			return nil
		},
	}
}

func newLogsRecordCmd(factory clientFactory) *cobra.Command {
	var (
		payload    dto.ActivityLogCreateRequest
		documentID uint
		formID     uint
	)

	cmd := &cobra.Command{
		Use:   "record --action <action> --client <id> (--document <id> | --form <id>)",
		Short: "Append an audit entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("document") {
				payload.DocumentID = &documentID
			}
			if cmd.Flags().Changed("form") {
				payload.FormID = &formID
			}
			client, err := factory()
			if err != nil {
				return err
			}
			entry, err := client.RecordActivity(cmd.Context(), payload)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}

	cmd.Flags().StringVar(&payload.Action, "action", "", "action name, e.g. Loaded or Signature")
	cmd.Flags().UintVar(&payload.ClientID, "client", 0, "tenant the entry belongs to")
	cmd.Flags().UintVar(&payload.ActorID, "actor", 0, "acting user id")
	cmd.Flags().UintVar(&documentID, "document", 0, "referenced document id")
	cmd.Flags().UintVar(&formID, "form", 0, "referenced form id")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("client")
	cmd.MarkFlagsMutuallyExclusive("document", "form")
	return cmd
}
