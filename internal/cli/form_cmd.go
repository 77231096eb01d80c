package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/noah-isme/docflow-api/pkg/docflowclient"
)

type formAction func(client *docflowclient.Client, ctx context.Context, role string, formID uint) (docflowclient.FormResponse, error)

func newFormCmd(factory clientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "form",
		Short: "Change form approvals",
	}

	cmd.AddCommand(newFormRoleCmd(factory, "toggle", "Flip one role's approval", (*docflowclient.Client).ToggleFormApproval))
	cmd.AddCommand(newFormRoleCmd(factory, "approve", "Set one role's approval", (*docflowclient.Client).ApproveForm))
	cmd.AddCommand(newFormRoleCmd(factory, "deapprove", "Clear one role's approval", (*docflowclient.Client).DeapproveForm))
	cmd.AddCommand(newUnapproveAllCmd(factory))
	return cmd
}

func newFormRoleCmd(factory clientFactory, use, short string, action formAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <client|admin> <formID>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formID, err := parseID("form id", args[1])
			if err != nil {
				return err
			}
			client, err := factory()
			if err != nil {
				return err
			}
			form, err := action(client, cmd.Context(), args[0], formID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), form)
		},
	}
}

func newUnapproveAllCmd(factory clientFactory) *cobra.Command {
	var sequential bool

	cmd := &cobra.Command{
		Use:   "unapprove-all <formID>",
		Short: "Clear the client and admin approvals of a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formID, err := parseID("form id", args[0])
			if err != nil {
				return err
			}
			client, err := factory()
			if err != nil {
				return err
			}
			run := client.UnapproveAll
			if sequential {
				run = client.UnapproveAllSequential
			}
			form, err := run(cmd.Context(), formID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), form)
		},
	}

	cmd.Flags().BoolVar(&sequential, "sequential", false, "deapprove role by role instead of in one transaction")
	return cmd
}
