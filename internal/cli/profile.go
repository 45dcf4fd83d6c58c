package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pairline/pairline/internal/profile"
	"github.com/pairline/pairline/internal/ui"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your saved profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showProfile()
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the saved profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := profile.NewStore()
		if err != nil {
			return err
		}
		p, err := promptProfile()
		if err != nil {
			return err
		}
		if err := store.Save(p); err != nil {
			return err
		}
		ui.PrintSuccess("Profile saved")
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileSetCmd)
	rootCmd.AddCommand(profileCmd)
}

func showProfile() error {
	store, err := profile.NewStore()
	if err != nil {
		return err
	}
	p, err := store.Load()
	if errors.Is(err, profile.ErrNotFound) {
		return fmt.Errorf("no saved profile, run 'pairline profile set' first")
	}
	if err != nil {
		return err
	}
	ui.RenderProfileTable(p)
	return nil
}
