package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/sage-vault/handle"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Provision, rekey, and remove stores",
}

var recreateStore bool

var storeProvisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision a new store at --uri",
	RunE: func(cmd *cobra.Command, args []string) error {
		opener, err := newOpener()
		if err != nil {
			return err
		}
		mgr := handle.NewManager(opener)
		ctx := context.Background()
		h, err := mgr.StoreProvision(ctx, storeURI, keyMethod, passKeyFromEnv(), profile, recreateStore)
		if err != nil {
			return fmt.Errorf("provision %s: %w", storeURI, err)
		}
		defer mgr.StoreClose(ctx, h)
		fmt.Printf("provisioned %s (key_method=%s, profile=%s)\n", storeURI, keyMethod, profile)
		return nil
	},
}

var storeRekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Re-encrypt a store under a new key method/pass key",
	RunE: func(cmd *cobra.Command, args []string) error {
		opener, err := newOpener()
		if err != nil {
			return err
		}
		mgr := handle.NewManager(opener)
		ctx := context.Background()
		h, err := mgr.StoreOpen(ctx, storeURI, "", nil, profile)
		if err != nil {
			return fmt.Errorf("open %s: %w", storeURI, err)
		}
		defer mgr.StoreClose(ctx, h)
		if err := mgr.StoreRekey(ctx, h, keyMethod, passKeyFromEnv()); err != nil {
			return fmt.Errorf("rekey %s: %w", storeURI, err)
		}
		fmt.Printf("rekeyed %s to key_method=%s\n", storeURI, keyMethod)
		return nil
	},
}

var storeRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete a store outright",
	RunE: func(cmd *cobra.Command, args []string) error {
		opener, err := newOpener()
		if err != nil {
			return err
		}
		mgr := handle.NewManager(opener)
		removed, err := mgr.StoreRemove(context.Background(), storeURI)
		if err != nil {
			return fmt.Errorf("remove %s: %w", storeURI, err)
		}
		if !removed {
			fmt.Printf("no store found at %s\n", storeURI)
			return nil
		}
		fmt.Printf("removed %s\n", storeURI)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeProvisionCmd, storeRekeyCmd, storeRemoveCmd)
	storeProvisionCmd.Flags().BoolVar(&recreateStore, "recreate", false, "replace any existing store at --uri")
}
