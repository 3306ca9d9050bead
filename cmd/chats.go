package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/togpt/togpt/internal/chat"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage saved chats",
	Long: `List, show, delete and clear saved chats.

Examples:
  togpt chats                     # list chats
  togpt chats list --search go    # filter by title
  togpt chats show <id>
  togpt chats delete <id>
  togpt chats clear`,
	RunE: runChatsList,
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats",
	Args:  cobra.NoArgs,
	RunE:  runChatsList,
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsShow,
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsDelete,
}

var chatsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all chats (requires confirmation)",
	Long: `Delete every saved chat. This cannot be undone.

You must type 'yes' to confirm unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: runChatsClear,
}

var (
	chatsSearch string
	chatsJSON   bool
	chatsYes    bool
)

func init() {
	chatsListCmd.Flags().StringVar(&chatsSearch, "search", "", "Only chats whose title contains this text")
	chatsShowCmd.Flags().BoolVar(&chatsJSON, "json", false, "Output as JSON")
	chatsClearCmd.Flags().BoolVar(&chatsYes, "yes", false, "Skip the confirmation prompt")

	chatsCmd.AddCommand(chatsListCmd)
	chatsCmd.AddCommand(chatsShowCmd)
	chatsCmd.AddCommand(chatsDeleteCmd)
	chatsCmd.AddCommand(chatsClearCmd)
	rootCmd.AddCommand(chatsCmd)
}

func runChatsList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	printChatList(cmd.OutOrStdout(), a.registry.Conversations(chatsSearch), a.registry.ActiveChat(), time.Now())
	return nil
}

func printChatList(w io.Writer, chats []chat.Conversation, active string, now time.Time) {
	if len(chats) == 0 {
		fmt.Fprintln(w, "No chats found.")
		return
	}

	fmt.Fprintf(w, "  %-3s %-36s %-10s %-5s %s\n", "#", "ID", "Updated", "Msgs", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for i, c := range chats {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		title := []rune(c.Title)
		if len(title) > 35 {
			title = append(title[:32], []rune("...")...)
		}
		updated := formatRelativeTime(time.UnixMilli(c.UpdatedAt), now)
		fmt.Fprintf(w, "%s %-3d %-36s %-10s %-5d %s\n", marker, i+1, c.ID, updated, len(c.Messages), string(title))
	}
}

func runChatsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	conv, ok := a.registry.Conversation(args[0])
	if !ok {
		return fmt.Errorf("chat '%s' not found", args[0])
	}

	w := cmd.OutOrStdout()
	if chatsJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(conv)
	}

	fmt.Fprintf(w, "Chat: %s\n", conv.ID)
	fmt.Fprintf(w, "Title: %s\n", conv.Title)
	fmt.Fprintf(w, "Created: %s\n", time.UnixMilli(conv.CreatedAt).Format(time.RFC3339))
	fmt.Fprintf(w, "Updated: %s\n", time.UnixMilli(conv.UpdatedAt).Format(time.RFC3339))
	fmt.Fprintf(w, "Messages: %d\n\n", len(conv.Messages))
	for _, m := range conv.Messages {
		printMessage(w, m)
	}
	return nil
}

func runChatsDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if _, ok := a.registry.Conversation(args[0]); !ok {
		return fmt.Errorf("chat '%s' not found", args[0])
	}
	a.registry.DeleteChat(cmd.Context(), args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted chat: %s\n", args[0])
	return nil
}

func runChatsClear(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	w := cmd.OutOrStdout()
	n := len(a.registry.Conversations(""))
	if n == 0 {
		fmt.Fprintln(w, "No chats to delete.")
		return nil
	}

	if !chatsYes {
		fmt.Fprintf(w, "This will delete ALL %d chats.\n\n", n)
		fmt.Fprint(w, "Type 'yes' to confirm: ")

		var response string
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if response != "yes" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	a.registry.ClearAllChats(cmd.Context())
	fmt.Fprintln(w, "All chats deleted.")
	return nil
}

// formatRelativeTime returns a human-readable relative time string
func formatRelativeTime(t, now time.Time) string {
	dur := now.Sub(t)
	switch {
	case dur < time.Minute:
		return "just now"
	case dur < time.Hour:
		return fmt.Sprintf("%dm ago", int(dur.Minutes()))
	case dur < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(dur.Hours()))
	case dur < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(dur.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
