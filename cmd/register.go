package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <name> <image>",
	Short: "Register a face image under a name",
	Long: `Computes the face embedding of the image and adds a new identity to the gallery.
Names are not unique: registering the same person twice adds a second reference.`,
	Args: cobra.ExactArgs(2),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRegister(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]
	ctx := cmd.Context()

	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reg, err := a.svc.Register(ctx, name, image)
	if err != nil {
		return fmt.Errorf("registering %s: %w", name, err)
	}

	if mustGetBool(cmd, "json") {
		return writeJSON(cmd.OutOrStdout(), reg)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as identity %d (detection score %.2f)\n", reg.Name, reg.ID, reg.DetScore)
	if reg.ImageRef != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Image: %s\n", reg.ImageRef)
	}
	return nil
}
