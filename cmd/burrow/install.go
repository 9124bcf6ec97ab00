package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cuemby/burrow/pkg/appenv"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Create the work directory tree and record the installed version",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := appenv.Load()
		if err != nil {
			return err
		}
		if err := env.Ensure(); err != nil {
			return err
		}

		screenState := filepath.Join(env.Root, appenv.ScreenStateFile)
		if _, err := os.Stat(screenState); os.IsNotExist(err) {
			if err := os.WriteFile(screenState, nil, 0o644); err != nil {
				return fmt.Errorf("failed to create screen state file: %w", err)
			}
		}

		if err := env.WriteInstalledVersion(Version); err != nil {
			return fmt.Errorf("failed to record installed version: %w", err)
		}

		fmt.Printf("Installed burrow %s at %s\n", Version, env.Root)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the work directory tree",
	Long: `Remove the work directory tree. Refuses to act when the recorded
installed version does not match this binary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := appenv.Load()
		if err != nil {
			return err
		}

		installed, err := env.InstalledVersion()
		if err != nil {
			return fmt.Errorf("failed to read installed version: %w", err)
		}
		if installed != Version {
			return fmt.Errorf("installed version %s does not match uninstaller version %s", installed, Version)
		}

		if err := os.RemoveAll(env.Root); err != nil {
			return fmt.Errorf("failed to delete work directory: %w", err)
		}

		fmt.Printf("Uninstalled burrow %s from %s\n", Version, env.Root)
		return nil
	},
}
