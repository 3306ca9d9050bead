package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/togpt/togpt/internal/chat"
	"github.com/togpt/togpt/internal/llm"
	"github.com/togpt/togpt/internal/preferences"
	"github.com/togpt/togpt/internal/search"
)

var chatModel string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Chat in the terminal. The conversation is saved like any other chat.

Examples:
  togpt chat
  togpt chat --model grok

Ctrl+C stops a reply in progress; pressed while idle it exits.

Slash commands:
  /help               - Show help
  /new                - Start a new chat
  /chats [text]       - List chats, optionally filtered by title
  /open <n|id>        - Switch to a chat from the list
  /history            - Show the current chat
  /clear              - Clear the current chat
  /model [name]       - Show or switch the model (gemini, grok)
  /continue           - Continue the last reply
  /edit <n> <text>    - Rewrite your n-th message and regenerate
  /search <query>     - Web search
  /prefs              - Show preferences
  /set <key> <value>  - Change a preference
  /quit               - Exit chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Model to start with (gemini, grok)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if chatModel != "" {
		m, err := chat.ParseModel(chatModel, a.registry.Models())
		if err != nil {
			return err
		}
		if _, err := a.registry.SetActiveModel(ctx, m); err != nil {
			return err
		}
	}

	// Ctrl+C stops generation first; a second press while idle exits.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-sigCh:
				if a.registry.Snapshot().IsGenerating {
					a.registry.StopGeneration()
					continue
				}
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	r := &repl{
		reg:      a.registry,
		prefs:    a.prefs,
		searcher: a.searcher(),
		in:       cmd.InOrStdin(),
		out:      cmd.OutOrStdout(),
	}
	return r.run(ctx)
}

// repl is the line-oriented chat loop.
type repl struct {
	reg      *chat.Registry
	prefs    *preferences.Store
	searcher search.Searcher
	in       io.Reader
	out      io.Writer

	listed []chat.Conversation // last /chats output, for /open <n>
}

var errQuit = errors.New("quit")

func (r *repl) run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	fmt.Fprintf(r.out, "togpt chat (model: %s). Type /help for commands.\n", r.reg.ActiveModel())
	for {
		fmt.Fprint(r.out, "❯ ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if err := r.command(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
			continue
		}
		if err := r.send(ctx, line); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) activeMessageCount() int {
	conv, ok := r.reg.Conversation(r.reg.ActiveChat())
	if !ok {
		return 0
	}
	return len(conv.Messages)
}

func (r *repl) send(ctx context.Context, text string) error {
	before := r.activeMessageCount()
	chatID, err := r.reg.SendMessage(ctx, text)
	if err != nil {
		return err
	}
	return r.showReply(chatID, before)
}

// showReply prints the chat's last message if the exchange added one.
func (r *repl) showReply(chatID string, before int) error {
	conv, ok := r.reg.Conversation(chatID)
	if !ok || len(conv.Messages) <= before {
		fmt.Fprintln(r.out, "(stopped)")
		return nil
	}
	last := conv.Messages[len(conv.Messages)-1]
	printMessage(r.out, last)
	if !last.Error && llm.ShouldOfferContinue(last.Content) {
		fmt.Fprintln(r.out, "(reply looks cut off, /continue to extend it)")
	}
	return nil
}

func printMessage(w io.Writer, m chat.Message) {
	switch {
	case m.Role == chat.RoleUser:
		fmt.Fprintf(w, "❯ %s\n\n", m.Content)
	case m.Error:
		fmt.Fprintf(w, "⚠ %s\n\n", m.Content)
	default:
		fmt.Fprintf(w, "🤖 %s\n\n", m.Content)
	}
}

func (r *repl) command(ctx context.Context, line string) error {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/help":
		fmt.Fprintln(r.out, "/new /chats [text] /open <n|id> /history /clear /model [name] /continue /edit <n> <text> /search <query> /prefs /set <key> <value> /quit")
	case "/quit", "/exit":
		return errQuit
	case "/new":
		r.reg.CreateChat(ctx)
		fmt.Fprintln(r.out, "Started a new chat.")
	case "/chats":
		r.listed = r.reg.Conversations(rest)
		r.reg.SetSearchTerm(rest)
		for i, c := range r.listed {
			marker := " "
			if c.ID == r.reg.ActiveChat() {
				marker = "*"
			}
			fmt.Fprintf(r.out, "%s %d. %s (%d messages)\n", marker, i+1, c.Title, len(c.Messages))
		}
		if len(r.listed) == 0 {
			fmt.Fprintln(r.out, "No chats found.")
		}
	case "/open":
		id := rest
		if n, err := strconv.Atoi(rest); err == nil {
			if n < 1 || n > len(r.listed) {
				return fmt.Errorf("no chat #%d in the last /chats list", n)
			}
			id = r.listed[n-1].ID
		}
		if err := r.reg.SetActiveChat(ctx, id); err != nil {
			return err
		}
		conv, _ := r.reg.Conversation(id)
		fmt.Fprintf(r.out, "Opened %q.\n", conv.Title)
	case "/history":
		conv, ok := r.reg.Conversation(r.reg.ActiveChat())
		if !ok {
			return chat.ErrNoActiveChat
		}
		for _, m := range conv.Messages {
			printMessage(r.out, m)
		}
	case "/clear":
		if err := r.reg.ClearMessages(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "Chat cleared.")
	case "/model":
		if rest == "" {
			fmt.Fprintf(r.out, "Model: %s\n", r.reg.ActiveModel())
			return nil
		}
		m, err := chat.ParseModel(rest, r.reg.Models())
		if err != nil {
			return err
		}
		switched, err := r.reg.SetActiveModel(ctx, m)
		if err != nil {
			return err
		}
		if !switched {
			fmt.Fprintf(r.out, "Model unchanged (%s).\n", r.reg.ActiveModel())
			return nil
		}
		fmt.Fprintf(r.out, "Switched to %s.\n", m)
	case "/continue":
		return r.continueLast(ctx)
	case "/edit":
		return r.edit(ctx, rest)
	case "/search":
		return r.search(ctx, rest)
	case "/prefs":
		printPreferences(r.out, r.prefs.Preferences())
	case "/set":
		key, value, ok := strings.Cut(rest, " ")
		if !ok {
			return fmt.Errorf("usage: /set <key> <value>")
		}
		return setPreference(ctx, r.prefs, r.out, key, strings.TrimSpace(value))
	default:
		return fmt.Errorf("unknown command %s (try /help)", name)
	}
	return nil
}

func (r *repl) continueLast(ctx context.Context) error {
	chatID := r.reg.ActiveChat()
	conv, ok := r.reg.Conversation(chatID)
	if !ok {
		return chat.ErrNoActiveChat
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		m := conv.Messages[i]
		if m.Role != chat.RoleAssistant || m.Error {
			continue
		}
		if err := r.reg.ContinueGeneration(ctx, m.ID); err != nil {
			return err
		}
		updated, _ := r.reg.Conversation(chatID)
		if i < len(updated.Messages) {
			printMessage(r.out, updated.Messages[i])
		}
		return nil
	}
	return fmt.Errorf("nothing to continue")
}

func (r *repl) edit(ctx context.Context, args string) error {
	num, text, ok := strings.Cut(args, " ")
	n, err := strconv.Atoi(num)
	if !ok || err != nil || strings.TrimSpace(text) == "" {
		return fmt.Errorf("usage: /edit <n> <text>")
	}
	chatID := r.reg.ActiveChat()
	conv, found := r.reg.Conversation(chatID)
	if !found {
		return chat.ErrNoActiveChat
	}

	seen := 0
	for i, m := range conv.Messages {
		if m.Role != chat.RoleUser {
			continue
		}
		seen++
		if seen == n {
			if err := r.reg.EditMessage(ctx, m.ID, strings.TrimSpace(text)); err != nil {
				return err
			}
			return r.showReply(chatID, i)
		}
	}
	return fmt.Errorf("no message #%d from you in this chat", n)
}

func (r *repl) search(ctx context.Context, query string) error {
	if r.searcher == nil {
		return fmt.Errorf("web search is not configured (set GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_CX)")
	}
	results, err := r.searcher.Search(ctx, query)
	if err != nil {
		return err
	}
	printSearchResults(r.out, results)
	return nil
}

func printSearchResults(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, res := range results {
		fmt.Fprintf(w, "%d. [%s](%s)\n   %s\n", i+1, res.Title, res.Link, res.Snippet)
	}
}
