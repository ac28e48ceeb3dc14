package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/sage-vault/handle"
)

var keygenSeed string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a raw store-protection key (generate_raw_key)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var seed []byte
		if keygenSeed != "" {
			decoded, err := hex.DecodeString(keygenSeed)
			if err != nil {
				return fmt.Errorf("decode --seed: %w", err)
			}
			seed = decoded
		}
		raw, err := handle.GenerateRawKey(seed)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(raw))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenSeed, "seed", "", "hex-encoded deterministic seed (omit for the OS CSPRNG)")
}
