package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered identities",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("name", "", "Filter by name (case and diacritics insensitive)")
	listCmd.Flags().Bool("json", false, "Output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	identities, err := a.svc.ListIdentities(ctx, mustGetString(cmd, "name"))
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return writeJSON(cmd.OutOrStdout(), identities)
	}

	if len(identities) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No identities registered")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tIMAGE")
	for _, identity := range identities {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", identity.ID, identity.Name, identity.CreatedAt.Format("2006-01-02 15:04:05"), identity.ImageRef)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d\n", len(identities))
	return nil
}
