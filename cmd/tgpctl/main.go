package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/matheus3301/tgp/internal/client"
	"github.com/matheus3301/tgp/internal/session"
)

func main() {
	accountFlag := flag.String("account", "", "account name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if args[0] == "accounts" {
		cmdAccounts(*jsonFlag)
		return
	}

	accountName := session.Resolve(*accountFlag)
	if err := session.ValidateName(accountName); err != nil {
		fatal(err)
	}

	c, err := client.New(session.SocketPath(accountName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for account %q: %v\n", accountName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := c.Watch(ctx, func(evt map[string]any) { output(evt, *jsonFlag) }); err != nil {
			fatal(err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := &printer{json: *jsonFlag}
	switch args[0] {
	case "status":
		out.one(c.GetStatus(ctx))
	case "stats":
		out.one(c.GetStats(ctx))
	case "user":
		out.one(c.GetUser(ctx, intArg(args, 1, "user <id>")))
	case "user-by-phone":
		out.one(c.GetUserByPhone(ctx, strArg(args, 1, "user-by-phone <phone>")))
	case "chat":
		out.one(c.GetChat(ctx, intArg(args, 1, "chat <id>")))
	case "contacts-without-chat":
		out.many(c.GetContactsWithoutChat(ctx))
	case "private-chats":
		out.many(c.GetPrivateChats(ctx))
	case "drain":
		out.many(c.Drain(ctx, strArg(args, 1, "drain <messages|user_updates|user_actions|failed_contacts>")))
	case "drain-now":
		out.one(c.DrainNow(ctx))
	case "ingest":
		cmdIngest(ctx, c, args)
	case "contact":
		cmdContact(ctx, c, args, out)
	case "messages":
		limit := 50
		if len(args) > 2 {
			limit = int(intArg(args, 2, "messages <chat_id> [limit]"))
		}
		out.many(c.ListMessages(ctx, intArg(args, 1, "messages <chat_id> [limit]"), 0, limit))
	case "search":
		out.many(c.SearchMessages(ctx, strArg(args, 1, "search <query>"), 0, 20))
	case "batches":
		out.many(c.ListBatches(ctx, 20))
	case "chats":
		out.many(c.ListChats(ctx, 50, 0))
	case "failed-contacts":
		out.many(c.ListFailedContacts(ctx, 100))
	case "recorded-contacts-without-chat":
		out.many(c.GetRecordedContactsWithoutChat(ctx))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: tgpctl [--account <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                                  Show daemon status")
	fmt.Fprintln(os.Stderr, "  stats                                   Show account state counters")
	fmt.Fprintln(os.Stderr, "  user <id>                               Show a cached user")
	fmt.Fprintln(os.Stderr, "  user-by-phone <phone>                   Find a cached user by phone number")
	fmt.Fprintln(os.Stderr, "  chat <id>                               Show a cached chat")
	fmt.Fprintln(os.Stderr, "  contacts-without-chat                   List contacts with no private chat")
	fmt.Fprintln(os.Stderr, "  private-chats                           List active private chats")
	fmt.Fprintln(os.Stderr, "  drain <table>                           Drain messages, user_updates, user_actions or failed_contacts")
	fmt.Fprintln(os.Stderr, "  drain-now                               Run one drain pass and record it")
	fmt.Fprintln(os.Stderr, "  ingest <updates|contacts|dialogs> <file> Ingest a TL-encoded object")
	fmt.Fprintln(os.Stderr, "  contact add <request_id> <phone> [user]  Register a pending add-contact request")
	fmt.Fprintln(os.Stderr, "  contact complete <request_id> [error]   Resolve an add-contact request")
	fmt.Fprintln(os.Stderr, "  messages <chat_id> [limit]              List recorded messages")
	fmt.Fprintln(os.Stderr, "  search <query>                          Search recorded messages")
	fmt.Fprintln(os.Stderr, "  batches                                 List recorded drain batches")
	fmt.Fprintln(os.Stderr, "  chats                                   List recorded chats")
	fmt.Fprintln(os.Stderr, "  failed-contacts                         List recorded add-contact failures")
	fmt.Fprintln(os.Stderr, "  recorded-contacts-without-chat          Show the last recorded contacts-without-chat snapshot")
	fmt.Fprintln(os.Stderr, "  watch                                   Stream daemon events")
	fmt.Fprintln(os.Stderr, "  accounts                                List known accounts")
}

func cmdIngest(ctx context.Context, c *client.Client, args []string) {
	const usage = "ingest <updates|contacts|dialogs> <file>"
	kind := strArg(args, 1, usage)
	raw, err := os.ReadFile(strArg(args, 2, usage))
	if err != nil {
		fatal(err)
	}
	switch kind {
	case "updates":
		err = c.IngestUpdates(ctx, raw)
	case "contacts":
		err = c.IngestContacts(ctx, raw)
	case "dialogs":
		err = c.IngestDialogs(ctx, raw)
	default:
		usageError(usage)
	}
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Ingested %d bytes of %s\n", len(raw), kind)
}

func cmdContact(ctx context.Context, c *client.Client, args []string, out *printer) {
	switch strArg(args, 1, "contact <add|complete> ...") {
	case "add":
		const usage = "contact add <request_id> <phone> [user_id]"
		var userID int64
		if len(args) > 4 {
			userID = intArg(args, 4, usage)
		}
		if err := c.AddContactRequest(ctx, uint64(intArg(args, 2, usage)), strArg(args, 3, usage), userID); err != nil {
			fatal(err)
		}
		fmt.Println("Contact request registered.")
	case "complete":
		const usage = "contact complete <request_id> [error]"
		errMsg := ""
		if len(args) > 3 {
			errMsg = args[3]
		}
		out.one(c.CompleteContactRequest(ctx, uint64(intArg(args, 2, usage)), errMsg))
	default:
		usageError("contact <add|complete> ...")
	}
}

func cmdAccounts(jsonOut bool) {
	entries, err := os.ReadDir(session.BaseDir() + "/accounts")
	if err != nil && !os.IsNotExist(err) {
		fatal(err)
	}
	var accounts []any
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		_, sockErr := os.Stat(session.SocketPath(e.Name()))
		accounts = append(accounts, map[string]any{
			"name":    e.Name(),
			"path":    session.Dir(e.Name()),
			"running": sockErr == nil,
		})
	}
	if jsonOut {
		outputJSON(accounts)
		return
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts found.")
		return
	}
	for _, a := range accounts {
		m := a.(map[string]any)
		running := "stopped"
		if m["running"].(bool) {
			running = "running"
		}
		fmt.Printf("%-20s %s (%s)\n", m["name"], m["path"], running)
	}
}

func strArg(args []string, i int, usage string) string {
	if len(args) <= i {
		usageError(usage)
	}
	return args[i]
}

func intArg(args []string, i int, usage string) int64 {
	n, err := strconv.ParseInt(strArg(args, i, usage), 10, 64)
	if err != nil {
		usageError(usage)
	}
	return n
}

func usageError(usage string) {
	fmt.Fprintf(os.Stderr, "usage: tgpctl %s\n", usage)
	os.Exit(1)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
