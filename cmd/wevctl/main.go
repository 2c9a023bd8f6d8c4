package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/api"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/library"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/client"
)

func main() {
	libraryFlag := flag.String("library", "", "library name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	libraryName := library.Resolve(*libraryFlag)
	if err := library.ValidateName(libraryName); err != nil {
		fatal("%v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := client.New(library.SocketPath(libraryName))
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "reload":
		cmdReload(ctx, c, *jsonFlag)
	case "chats":
		cmdChats(ctx, c, args[1:], *jsonFlag)
	case "messages":
		cmdMessages(ctx, c, args[1:], *jsonFlag)
	case "search":
		cmdSearch(ctx, c, args[1:], *jsonFlag)
	case "star":
		cmdStar(ctx, c, args[1:], *jsonFlag)
	case "starred":
		cmdStarred(ctx, c, args[1:], *jsonFlag)
	case "stats":
		cmdStats(ctx, c, args[1:], *jsonFlag)
	case "events":
		// Streams until interrupted, so no request timeout.
		cmdEvents(c, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wevctl [--library <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                              Show library status")
	fmt.Fprintln(os.Stderr, "  reload                              Re-import every chat")
	fmt.Fprintln(os.Stderr, "  chats list                          List registered chats")
	fmt.Fprintln(os.Stderr, "  chats add <name> <file> [mediadir]  Register an export file")
	fmt.Fprintln(os.Stderr, "  chats rm <name>                     Remove a chat")
	fmt.Fprintln(os.Stderr, "  chats show <name>                   Show one chat and its files")
	fmt.Fprintln(os.Stderr, "  chats reload <name>                 Re-import one chat")
	fmt.Fprintln(os.Stderr, "  messages <chat> [offset [limit]]    Print messages (default first 50)")
	fmt.Fprintln(os.Stderr, "  search <chat> <query>               Case-insensitive substring search")
	fmt.Fprintln(os.Stderr, "  star <chat> <seq>                   Toggle a star")
	fmt.Fprintln(os.Stderr, "  starred <chat>                      List starred messages")
	fmt.Fprintln(os.Stderr, "  stats <chat>                        Per-sender message counts")
	fmt.Fprintln(os.Stderr, "  events [prefix]                     Tail daemon events")
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.LibraryStatus(ctx)
	if err != nil {
		fatal("%v", err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Library: %s\n", resp.Library)
	fmt.Printf("State:   %s\n", resp.State)
	fmt.Printf("Uptime:  %s\n", (time.Duration(resp.UptimeMS) * time.Millisecond).Round(time.Second))
	fmt.Printf("Chats:   %d\n", resp.Chats)
	fmt.Printf("Records: %d\n", resp.Records)
}

func cmdReload(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.ReloadLibrary(ctx)
	if err != nil {
		fatal("%v", err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Imported: %d\n", resp.Imported)
	fmt.Printf("Failed:   %d\n", resp.Failed)
	fmt.Printf("State:    %s\n", resp.State)
}

func cmdChats(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: wevctl chats <list|add|rm|show|reload> ...")
		os.Exit(1)
	}
	switch args[0] {
	case "list":
		chats, err := c.ListChats(ctx)
		if err != nil {
			fatal("%v", err)
		}
		if jsonOut {
			outputJSON(chats)
			return
		}
		if len(chats) == 0 {
			fmt.Println("No chats registered.")
			return
		}
		for _, chat := range chats {
			fmt.Printf("%-24s %6d messages  %s\n", chat.Name, chat.MessageCount, chat.LastPreview)
		}
	case "add":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: wevctl chats add <name> <file> [mediadir]")
			os.Exit(1)
		}
		// The daemon's working directory is not ours; send absolute paths.
		file, err := filepath.Abs(args[2])
		if err != nil {
			fatal("%v", err)
		}
		mediaDir := ""
		if len(args) > 3 {
			if mediaDir, err = filepath.Abs(args[3]); err != nil {
				fatal("%v", err)
			}
		}
		chat, err := c.AddChat(ctx, args[1], file, mediaDir)
		if err != nil {
			fatal("%v", err)
		}
		if jsonOut {
			outputJSON(chat)
			return
		}
		fmt.Printf("Imported %d messages into %q.\n", chat.MessageCount, chat.Name)
	case "rm":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wevctl chats rm <name>")
			os.Exit(1)
		}
		if err := c.DeleteChat(ctx, args[1]); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Removed chat %q.\n", args[1])
	case "show":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wevctl chats show <name>")
			os.Exit(1)
		}
		chat, err := c.GetChat(ctx, args[1])
		if err != nil {
			fatal("%v", err)
		}
		if jsonOut {
			outputJSON(chat)
			return
		}
		fmt.Printf("Name:     %s\n", chat.Name)
		fmt.Printf("Messages: %d\n", chat.MessageCount)
		if chat.MessageCount > 0 {
			fmt.Printf("First:    %s\n", formatTime(chat.FirstSentUnixMS))
			fmt.Printf("Last:     %s\n", formatTime(chat.LastSentUnixMS))
		}
		if chat.ImportedAtUnixMS > 0 {
			fmt.Printf("Imported: %s\n", formatTime(chat.ImportedAtUnixMS))
		}
		for _, src := range chat.Sources {
			if src.MediaDir != "" {
				fmt.Printf("Source:   %s (media: %s)\n", src.FilePath, src.MediaDir)
			} else {
				fmt.Printf("Source:   %s\n", src.FilePath)
			}
		}
	case "reload":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wevctl chats reload <name>")
			os.Exit(1)
		}
		chat, err := c.ReloadChat(ctx, args[1])
		if err != nil {
			fatal("%v", err)
		}
		if jsonOut {
			outputJSON(chat)
			return
		}
		fmt.Printf("Re-imported %d messages into %q.\n", chat.MessageCount, chat.Name)
	default:
		fmt.Fprintf(os.Stderr, "unknown chats subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func cmdMessages(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: wevctl messages <chat> [offset [limit]]")
		os.Exit(1)
	}
	offset, limit := 0, 50
	if len(args) > 1 {
		offset = mustAtoi(args[1])
	}
	if len(args) > 2 {
		limit = mustAtoi(args[2])
	}
	resp, err := c.Messages(ctx, args[0], offset, limit)
	if err != nil {
		fatal("%v", err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	for _, msg := range resp.Messages {
		fmt.Println(formatMessage(msg))
	}
	fmt.Printf("(%d of %d messages)\n", len(resp.Messages), resp.Total)
}

func cmdSearch(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: wevctl search <chat> <query>")
		os.Exit(1)
	}
	hits, err := c.Search(ctx, args[0], args[1])
	if err != nil {
		fatal("%v", err)
	}
	if jsonOut {
		outputJSON(hits)
		return
	}
	if len(hits) == 0 {
		fmt.Println("No matches.")
		return
	}
	for _, hit := range hits {
		fmt.Printf("#%-5d %s  %s: %s\n", hit.FrontendIndex, formatTime(hit.TimestampUnixMS), hit.Sender, hit.Snippet)
	}
}

func cmdStar(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: wevctl star <chat> <seq>")
		os.Exit(1)
	}
	seq, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fatal("invalid seq %q", args[1])
	}
	resp, err := c.Star(ctx, args[0], seq)
	if err != nil {
		fatal("%v", err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	if resp.Starred {
		fmt.Printf("Starred seq %d.\n", resp.Seq)
	} else {
		fmt.Printf("Unstarred seq %d.\n", resp.Seq)
	}
}

func cmdStarred(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: wevctl starred <chat>")
		os.Exit(1)
	}
	items, err := c.Starred(ctx, args[0])
	if err != nil {
		fatal("%v", err)
	}
	if jsonOut {
		outputJSON(items)
		return
	}
	if len(items) == 0 {
		fmt.Println("No starred messages.")
		return
	}
	for _, item := range items {
		text := item.Text
		if item.Kind == "media" {
			text = "[" + item.MediaType + "] " + item.Caption
		}
		fmt.Printf("#%-5d %s  %s: %s\n", item.FrontendIndex, formatTime(item.TimestampUnixMS), item.Sender, text)
	}
}

func cmdStats(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: wevctl stats <chat>")
		os.Exit(1)
	}
	stats, err := c.Stats(ctx, args[0])
	if err != nil {
		fatal("%v", err)
	}
	if jsonOut {
		outputJSON(stats)
		return
	}
	for sender, count := range stats {
		media := count.Media.Photo + count.Media.Video + count.Media.Audio + count.Media.Other
		fmt.Printf("%-24s %6d text  %6d media  %6d system\n", sender, count.Text, media, count.System)
	}
}

func cmdEvents(c *client.Client, args []string) {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Events(ctx, prefix)
	if err != nil {
		fatal("%v", err)
	}
	for env := range events {
		payload, _ := json.Marshal(env.Payload)
		fmt.Printf("%s  %-24s %s\n", time.UnixMilli(env.OccurredAtUnixMS).Format("15:04:05"), env.Kind, payload)
	}
}

func formatMessage(msg api.MessageDTO) string {
	ts := formatTime(msg.TimestampUnixMS)
	star := " "
	if msg.Starred {
		star = "*"
	}
	switch msg.Kind {
	case "system":
		return fmt.Sprintf("%s %s  -- %s", star, ts, msg.Text)
	case "media":
		caption := msg.Caption
		if caption != "" {
			caption = " " + caption
		}
		return fmt.Sprintf("%s %s  %s: [%s]%s", star, ts, msg.Sender, msg.MediaType, caption)
	case "bulk_media":
		return fmt.Sprintf("%s %s  %s: [gallery of %d]", star, ts, msg.Sender, len(msg.Items))
	default:
		return fmt.Sprintf("%s %s  %s: %s", star, ts, msg.Sender, msg.Text)
	}
}

func formatTime(unixMS int64) string {
	return time.UnixMilli(unixMS).Format("2006-01-02 15:04")
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		fatal("invalid number %q", s)
	}
	return n
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
