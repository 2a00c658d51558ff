package main

import (
	"context"
	"fmt"
	"time"

	crewdesk "github.com/crewdesk/crewdesk-go"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current configuration and connectivity",
	Long:  "Display the stored configuration and check that the chat API is reachable with the stored token.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Println("Configuration:")
		fmt.Printf("  Base URL: %s\n", valueOrDefault(cfg.Default.BaseURL, crewdesk.DefaultBaseURL))
		if cfg.Auth.Token != "" {
			fmt.Printf("  Token:    %s\n", maskToken(cfg.Auth.Token))
		} else {
			fmt.Println("  Token:    (not set)")
		}

		if cfg.Auth.Token == "" {
			return nil
		}

		fmt.Println()
		fmt.Println("Live status:")

		opts := []crewdesk.ClientOption{}
		if cfg.Default.BaseURL != "" {
			opts = append(opts, crewdesk.WithBaseURL(cfg.Default.BaseURL))
		}
		client := crewdesk.NewClient(cfg.Auth.Token, opts...)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		convs, err := client.Conversations.List(ctx)
		if err != nil {
			fmt.Printf("  Error reaching chat API: %v\n", err)
			return nil
		}

		unread := 0
		for _, c := range convs {
			unread += c.UnreadCount
		}
		fmt.Printf("  Conversations: %d\n", len(convs))
		fmt.Printf("  Unread:        %d\n", unread)

		if users, err := client.Presence.Online(ctx); err == nil {
			online := 0
			for _, u := range users {
				if u.IsOnline {
					online++
				}
			}
			fmt.Printf("  Online now:    %d\n", online)
		}
		return nil
	},
}

// maskToken shows the first 8 and last 4 characters of a token.
func maskToken(token string) string {
	if len(token) <= 12 {
		return token[:2] + "..."
	}
	return token[:8] + "..." + token[len(token)-4:]
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
