package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ltavares/feira/internal/api"
	"github.com/ltavares/feira/internal/config"
	"github.com/ltavares/feira/internal/logging"
	"github.com/ltavares/feira/internal/profile"
	"github.com/ltavares/feira/internal/unread"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(profile.LogPath(name), name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	tokens := profile.NewTokenStore(profile.TokenPath(name))
	client := api.New(cfg.APIURL, tokens, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "login":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: feiractl login <email>")
			os.Exit(1)
		}
		cmdLogin(ctx, client, tokens, args[1])
	case "logout":
		cmdLogout(ctx, client, tokens)
	case "chats":
		cmdChats(ctx, client, tokens, *jsonFlag)
	case "unread":
		cmdUnread(ctx, client, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: feiractl messages <chat-id>")
			os.Exit(1)
		}
		cmdMessages(ctx, client, tokens, args[1], *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: feiractl send <chat-id> <text>")
			os.Exit(1)
		}
		cmdSend(ctx, client, args[1], strings.Join(args[2:], " "), *jsonFlag)
	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: feiractl delete <chat-id>")
			os.Exit(1)
		}
		cmdDelete(ctx, client, args[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: feiractl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login <email>          Log in (password read from stdin)")
	fmt.Fprintln(os.Stderr, "  logout                 Log out and clear the stored credential")
	fmt.Fprintln(os.Stderr, "  chats                  List conversations")
	fmt.Fprintln(os.Stderr, "  unread                 Show the aggregate unread count")
	fmt.Fprintln(os.Stderr, "  messages <chat-id>     Show a conversation's messages")
	fmt.Fprintln(os.Stderr, "  send <chat-id> <text>  Send a message")
	fmt.Fprintln(os.Stderr, "  delete <chat-id>       Delete a conversation")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %s\n", api.ErrorMessage(err))
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func cmdLogin(ctx context.Context, c *api.Client, tokens *profile.TokenStore, email string) {
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	password = strings.TrimRight(password, "\r\n")

	sess, err := c.Login(ctx, email, password)
	if err != nil {
		fail(err)
	}
	cred := profile.Credential{Token: sess.Token, UserID: sess.UserID, Email: sess.Email}
	if err := tokens.Save(&cred); err != nil {
		fmt.Fprintf(os.Stderr, "error: saving credential: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Logged in as %s\n", sess.Email)
}

func cmdLogout(ctx context.Context, c *api.Client, tokens *profile.TokenStore) {
	// Best effort server-side; the local credential goes away regardless.
	if err := c.Logout(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: server-side logout failed: %s\n", api.ErrorMessage(err))
	}
	if err := tokens.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "error: clearing credential: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Logged out")
}

func cmdChats(ctx context.Context, c *api.Client, tokens *profile.TokenStore, jsonOut bool) {
	inbox, err := c.ListConversations(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(inbox)
		return
	}
	selfID := tokens.UserID()
	for _, conv := range inbox.Conversations {
		badge := unread.FormatBadge(conv.UnreadCount)
		if badge != "" {
			badge = " (" + badge + ")"
		}
		other := conv.OtherParticipant(selfID)
		fmt.Printf("%s  %s%s  %s — %s\n", conv.ID, other.Name, badge, conv.AdTitle, conv.LastMessagePreview)
	}
	fmt.Printf("Total unread: %d\n", inbox.TotalUnread)
}

func cmdUnread(ctx context.Context, c *api.Client, jsonOut bool) {
	inbox, err := c.ListConversations(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(map[string]any{
			"totalUnread": inbox.TotalUnread,
			"badge":       unread.FormatBadge(inbox.TotalUnread),
		})
		return
	}
	fmt.Println(inbox.TotalUnread)
}

func cmdMessages(ctx context.Context, c *api.Client, tokens *profile.TokenStore, chatID string, jsonOut bool) {
	msgs, err := c.ListMessages(ctx, chatID)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	selfID := tokens.UserID()
	for _, m := range msgs {
		sender := m.SenderName
		if m.SenderID == selfID {
			sender = "You"
		}
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), sender, m.Text)
	}
}

func cmdSend(ctx context.Context, c *api.Client, chatID, text string, jsonOut bool) {
	msg, err := c.SendMessage(ctx, chatID, text)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(msg)
		return
	}
	fmt.Printf("Sent %s\n", msg.ID)
}

func cmdDelete(ctx context.Context, c *api.Client, chatID string) {
	err := c.DeleteConversation(ctx, chatID)
	switch {
	case err == nil:
		fmt.Println("Conversation deleted")
	case errors.Is(err, api.ErrNotFound):
		fmt.Println("Conversation already deleted")
	default:
		fail(err)
	}
}
