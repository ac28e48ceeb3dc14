package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/handle"
)

var (
	keyAlgName   string
	keyHex       string
	keyMeta      string
	keyExportPub bool
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Insert and fetch keys stored under a profile's session",
}

func withSession(fn func(ctx context.Context, mgr *handle.Manager, sh handle.SessionHandle) error) error {
	opener, err := newOpener()
	if err != nil {
		return err
	}
	mgr := handle.NewManager(opener)
	ctx := context.Background()

	storeHandle, err := mgr.StoreOpen(ctx, storeURI, keyMethod, passKeyFromEnv(), profile)
	if err != nil {
		return fmt.Errorf("open %s: %w", storeURI, err)
	}
	defer mgr.StoreClose(ctx, storeHandle)

	sessionHandle, err := mgr.SessionStart(ctx, storeHandle, profile, false)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer mgr.SessionClose(ctx, sessionHandle, true)

	return fn(ctx, mgr, sessionHandle)
}

var keyInsertCmd = &cobra.Command{
	Use:   "insert <name>",
	Short: "Insert a key under name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alg, ok := aead.ParseAlgorithm(keyAlgName)
		if !ok {
			return fmt.Errorf("unknown algorithm %q", keyAlgName)
		}
		raw, err := hex.DecodeString(keyHex)
		if err != nil {
			return fmt.Errorf("decode --key-hex: %w", err)
		}
		key, err := aead.ImportKey(alg, raw)
		if err != nil {
			return err
		}
		return withSession(func(ctx context.Context, mgr *handle.Manager, sh handle.SessionHandle) error {
			if err := mgr.SessionInsertKey(ctx, sh, args[0], key, keyMeta, nil); err != nil {
				return err
			}
			fmt.Printf("inserted key %q (%s)\n", args[0], alg)
			return nil
		})
	},
}

var keyFetchCmd = &cobra.Command{
	Use:   "fetch <name>",
	Short: "Fetch a key by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, mgr *handle.Manager, sh handle.SessionHandle) error {
			key, err := mgr.SessionFetchKey(ctx, sh, args[0])
			if err != nil {
				return err
			}
			if key == nil {
				fmt.Printf("no key named %q\n", args[0])
				return nil
			}
			fmt.Printf("%s %s\n", key.Algorithm(), hex.EncodeToString(key.Bytes()))
			return nil
		})
	},
}

var keyExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Export a key as an oct JWK (store_export_key)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, mgr *handle.Manager, sh handle.SessionHandle) error {
			view, err := mgr.SessionExportKey(ctx, sh, args[0], keyExportPub)
			if err != nil {
				return err
			}
			out, err := json.Marshal(view)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		})
	},
}

var keyRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a key by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, mgr *handle.Manager, sh handle.SessionHandle) error {
			if err := mgr.SessionRemoveKey(ctx, sh, args[0]); err != nil {
				return err
			}
			fmt.Printf("removed key %q\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyInsertCmd, keyFetchCmd, keyExportCmd, keyRemoveCmd)

	keyInsertCmd.Flags().StringVar(&keyAlgName, "alg", "a256gcm", "AEAD algorithm name")
	keyInsertCmd.Flags().StringVar(&keyHex, "key-hex", "", "hex-encoded raw key bytes")
	keyInsertCmd.Flags().StringVar(&keyMeta, "metadata", "", "opaque caller metadata stored alongside the key")
	keyExportCmd.Flags().BoolVar(&keyExportPub, "public", false, "export a public view (unsupported for symmetric keys)")
}
