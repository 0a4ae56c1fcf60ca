package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferre795/chatrelay/internal/config"
	"github.com/ferre795/chatrelay/internal/logger"
	"github.com/ferre795/chatrelay/internal/markdown"
	"github.com/ferre795/chatrelay/internal/terminal"
	"github.com/ferre795/chatrelay/pkg/chat"
	"github.com/ferre795/chatrelay/pkg/session"
	"github.com/ferre795/chatrelay/pkg/store"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat client",
	Long: `Open the interactive chat client against a running relay server.
Sessions persist across restarts; type /help inside the client for the
available commands.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	// The client logs to file only; the terminal belongs to the chat
	logCfg := cfg.Logging
	logCfg.Console = false
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	var st store.Store
	switch cfg.Store.Backend {
	case "sqlite":
		st, err = store.NewSQLiteStore(cfg.Store.Path, log.GetZerolog())
	default:
		st, err = store.NewFileStore(cfg.Store.Path, log.GetZerolog())
	}
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer st.Close()

	render := markdown.Plain()
	if cfg.Client.Markdown {
		render = markdown.NewRenderer(cfg.Client.Width)
	}

	transcript := terminal.NewTranscript(os.Stdout)
	history := terminal.NewHistoryPanel()
	input := terminal.NewInput()
	prompter := terminal.NewPrompter(os.Stdin, os.Stdout)

	client, err := chat.NewClient(chat.Options{
		Registry:   session.NewRegistry(st, log.GetZerolog()),
		API:        chat.NewHTTPClient(cfg.Client.ServerURL),
		Transcript: transcript,
		History:    history,
		Input:      input,
		Prompter:   prompter,
		Render:     render.Render,
		TypeDelay:  time.Duration(cfg.Client.TypeDelayMs) * time.Millisecond,
		Logger:     log.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create chat client: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := client.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore sessions: %w", err)
	}

	return repl(ctx, client, history, input)
}

// repl reads lines until EOF or /quit. Slash commands manage sessions;
// anything else is sent as a chat message.
func repl(ctx context.Context, client *chat.Client, history *terminal.HistoryPanel, input *terminal.Input) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Type a message, or /help for commands.")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			if !input.Enabled() {
				fmt.Println("! A message is already in flight.")
				continue
			}
			if err := client.Send(ctx, line); err != nil {
				// Already surfaced on the transcript; keep the REPL alive
				continue
			}
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/help":
			printHelp()
		case "/new":
			client.StartNewChat(ctx)
		case "/history":
			history.Render(os.Stdout)
		case "/switch":
			if id, ok := entryByNumber(history, arg); ok {
				if err := client.ShowSession(id); err != nil {
					fmt.Printf("! %v\n", err)
				}
			}
		case "/delete":
			id := client.ActiveID()
			if arg != "" {
				var ok bool
				if id, ok = entryByNumber(history, arg); !ok {
					continue
				}
			}
			if err := client.DeleteChat(ctx, id); err != nil {
				fmt.Printf("! %v\n", err)
			}
		case "/clear":
			if err := client.RemoveAllChats(ctx); err != nil {
				fmt.Printf("! %v\n", err)
			}
		case "/quit", "/exit":
			return nil
		default:
			fmt.Printf("! Unknown command %s, try /help\n", cmd)
		}
	}
}

// entryByNumber resolves a 1-based panel position to a session id.
func entryByNumber(history *terminal.HistoryPanel, arg string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		fmt.Println("! Expected a chat number, see /history")
		return "", false
	}
	entries := history.Entries()
	if n < 1 || n > len(entries) {
		fmt.Printf("! No chat numbered %d\n", n)
		return "", false
	}
	return entries[n-1].ID, true
}

func printHelp() {
	fmt.Print(`Commands:
  /new           start a new chat
  /history       list chats, newest first
  /switch <n>    switch to chat n from /history
  /delete [n]    delete the current chat, or chat n
  /clear         remove all chat history
  /quit          exit
`)
}
