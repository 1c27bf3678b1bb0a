package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/keymanager"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate or display this node's lattice keypair",
	Long: `keygen opens (or creates, on first run) the node's Dilithium seed file
under <data-dir>/keys and prints the resulting public key.`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().String("node-id", "", "this node's identifier (required)")
	keygenCmd.MarkFlagRequired("node-id")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return err
	}
	nodeIDFlag, err := cmd.Flags().GetString("node-id")
	if err != nil {
		return err
	}
	nodeID := ids.NodeID(nodeIDFlag)

	km, err := keymanager.Open(dataDir, nodeID)
	if err != nil {
		return fmt.Errorf("open key manager: %w", err)
	}

	fmt.Printf("node_id:    %s\n", nodeID)
	fmt.Printf("public_key: %s\n", hex.EncodeToString(km.Public().Bytes()))
	return nil
}
