package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chriscow/lk-voice/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Access token commands",
}

var tokenMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Print a participant token as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		room, _ := cmd.Flags().GetString("room")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		grant, err := cfg.Issuer().Issue(user, room)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(grant)
	},
}

func init() {
	tokenMintCmd.Flags().String("user", "", "Participant identity")
	tokenMintCmd.Flags().String("room", "", "Room name")
	tokenMintCmd.MarkFlagRequired("user")
	tokenMintCmd.MarkFlagRequired("room")
	tokenCmd.AddCommand(tokenMintCmd)
}
