package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	crewdesk "github.com/crewdesk/crewdesk-go"
	"github.com/spf13/cobra"
)

// ============================================================================
// Flag variables
// ============================================================================

var (
	// chat conversations
	chatConversationsJSON bool

	// chat history
	chatHistoryLimit int
	chatHistoryJSON  bool

	// chat watch
	chatWatchConversation string
)

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.AddCommand(chatConversationsCmd)
	chatConversationsCmd.Flags().BoolVar(&chatConversationsJSON, "json", false, "raw JSON output")

	chatCmd.AddCommand(chatHistoryCmd)
	chatHistoryCmd.Flags().IntVar(&chatHistoryLimit, "limit", 20, "number of messages to fetch")
	chatHistoryCmd.Flags().BoolVar(&chatHistoryJSON, "json", false, "raw JSON output")

	chatCmd.AddCommand(chatSendCmd)

	chatCmd.AddCommand(chatWatchCmd)
	chatWatchCmd.Flags().StringVar(&chatWatchConversation, "conversation", "", "open this conversation while watching")
}

// ============================================================================
// Root chat command
// ============================================================================

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat commands",
	Long:  "Interact with CrewDesk chat: list conversations, read history, send messages, and watch the realtime stream.",
}

// ============================================================================
// chat conversations
// ============================================================================

var chatConversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		convs, err := client.Conversations.List(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if chatConversationsJSON {
			data, _ := json.MarshalIndent(convs, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		if len(convs) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		for _, c := range convs {
			title := c.Title
			if title == "" {
				title = string(c.Type)
			}
			last := ""
			if c.LastMessage != nil {
				last = c.LastMessage.Content
				if len(last) > 40 {
					last = last[:40] + "…"
				}
			}
			fmt.Printf("%-24s %-8s unread=%-3d %s\n", c.ID, title, c.UnreadCount, last)
		}
		return nil
	},
}

// ============================================================================
// chat history
// ============================================================================

var chatHistoryCmd = &cobra.Command{
	Use:   "history <conversation-id>",
	Short: "Show recent messages in a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msgs, err := client.Messages.History(ctx, args[0], &crewdesk.PageOptions{Limit: chatHistoryLimit})
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if chatHistoryJSON {
			data, _ := json.MarshalIndent(msgs, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		for _, m := range msgs {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), m.SenderID, m.Content)
		}
		return nil
	},
}

// ============================================================================
// chat send
// ============================================================================

var chatSendCmd = &cobra.Command{
	Use:   "send <conversation-id> <content>",
	Short: "Send a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msg, err := client.Messages.Send(ctx, args[0], args[1])
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Printf("Sent %s\n", msg.ID)
		return nil
	},
}

// ============================================================================
// chat watch
// ============================================================================

var chatWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream realtime chat events to the terminal",
	Long:  "Connect to the realtime endpoint and print messages, typing indicators, presence changes, and connection state transitions until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getClient()

		rt := client.Realtime(nil)
		defer rt.Close()

		rt.OnStateChange(func(s crewdesk.ConnState) {
			fmt.Printf("-- connection: %s\n", s)
		})
		rt.OnMessageNew(func(m crewdesk.Message) {
			fmt.Printf("[%s] %s @ %s: %s\n",
				m.CreatedAt.Local().Format("15:04:05"), m.SenderID, m.ConversationID, m.Content)
		})
		rt.OnMessageEdited(func(m crewdesk.Message) {
			fmt.Printf("[edited] %s @ %s: %s\n", m.SenderID, m.ConversationID, m.Content)
		})
		rt.OnMessageDeleted(func(ev crewdesk.MessageDeletedEvent) {
			fmt.Printf("[deleted] %s @ %s\n", ev.MessageID, ev.ConversationID)
		})
		rt.OnTyping(func(ev crewdesk.TypingStartEvent) {
			name := ev.UserName
			if name == "" {
				name = ev.UserID
			}
			fmt.Printf("… %s is typing in %s\n", name, ev.ConversationID)
		})
		rt.OnPresence(func(ev crewdesk.PresenceEvent) {
			status := "offline"
			if ev.Online {
				status = "online"
			}
			fmt.Printf("-- %s is %s\n", ev.UserID, status)
		})

		if err := rt.Connect(cfg.Auth.Token); err != nil {
			return fmt.Errorf("connect failed: %w", err)
		}

		if chatWatchConversation != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			// Best effort: the join is rejected until the connection is up.
			go func() {
				defer cancel()
				for i := 0; i < 20; i++ {
					if rt.State() == crewdesk.StateConnected {
						_ = rt.OpenConversation(ctx, chatWatchConversation)
						return
					}
					time.Sleep(500 * time.Millisecond)
				}
			}()
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		fmt.Println("\nBye.")
		return nil
	},
}
