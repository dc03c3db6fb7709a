package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/dhamidi/localchat"
	"github.com/dhamidi/localchat/history"
	"github.com/dhamidi/localchat/markup"
)

func historyUsage() {
	fmt.Fprintf(os.Stderr, "Usage: localchat history <list|show|rename|delete|latest|export> [arguments]\n")
}

// handleHistoryCommand processes subcommands for the 'history' feature.
func handleHistoryCommand(args []string) {
	if len(args) < 1 {
		historyUsage()
		die("Error: No history subcommand provided.")
	}

	subcommand := args[0]
	remainingArgs := args[1:]

	switch subcommand {
	case "list":
		listCmd := pflag.NewFlagSet("list", pflag.ExitOnError)
		configPath := addConfigFlag(listCmd)
		asJSON := listCmd.Bool("json", false, "Print the list as JSON")
		listCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: localchat history list [--json]\n")
			fmt.Fprintf(os.Stderr, "Lists saved conversations, most recently updated first.\n")
			listCmd.PrintDefaults()
		}
		listCmd.Parse(remainingArgs)
		if listCmd.NArg() != 0 {
			listCmd.Usage()
			die("Error: 'list' does not take any arguments")
		}

		a := setup(*configPath, nil)
		defer a.Close()
		summaries := a.store.ListSummaries()

		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(summaries); err != nil {
				die("Error encoding conversations: %v", err)
			}
			return
		}
		if len(summaries) == 0 {
			fmt.Println("No conversations found.")
			return
		}
		fmt.Println("Conversations:")
		for _, s := range summaries {
			fmt.Printf("  ID: %s, Title: %q, Created: %s, Updated: %s, Messages: %d\n",
				s.ID, s.Title, s.CreatedAt.Format(time.RFC3339), s.LastUpdatedAt.Format(time.RFC3339), s.MessageCount)
		}

	case "show":
		showCmd := pflag.NewFlagSet("show", pflag.ExitOnError)
		configPath := addConfigFlag(showCmd)
		asHTML := showCmd.Bool("html", false, "Print each message as rendered HTML")
		showCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: localchat history show [--html] <conversation-id>\n")
			fmt.Fprintf(os.Stderr, "Shows the messages of a saved conversation.\n")
			showCmd.PrintDefaults()
		}
		showCmd.Parse(remainingArgs)
		if showCmd.NArg() != 1 {
			showCmd.Usage()
			die("Error: 'show' takes exactly one conversation id")
		}

		a := setup(*configPath, nil)
		defer a.Close()
		conv := loadOrDie(a.store, showCmd.Arg(0))

		fmt.Printf("Conversation ID: %s\n", conv.ID)
		fmt.Printf("Title: %s\n", conv.Title)
		fmt.Printf("Created At: %s\n", conv.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Updated At: %s\n", conv.LastUpdatedAt.Format(time.RFC3339))
		fmt.Printf("Messages (%d):\n", len(conv.Messages))
		for i, msg := range conv.Messages {
			content := msg.Content
			if *asHTML {
				content = markup.Render(content)
			}
			fmt.Printf("  [%d] %s at %s\n", i, msg.Role, msg.Timestamp.Format(time.RFC3339))
			fmt.Printf("      %s\n", strings.ReplaceAll(content, "\n", "\n      "))
		}

	case "rename":
		renameCmd := pflag.NewFlagSet("rename", pflag.ExitOnError)
		configPath := addConfigFlag(renameCmd)
		renameCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: localchat history rename <conversation-id> <title...>\n")
			fmt.Fprintf(os.Stderr, "Changes the title of a saved conversation.\n")
			renameCmd.PrintDefaults()
		}
		renameCmd.Parse(remainingArgs)
		if renameCmd.NArg() < 2 {
			renameCmd.Usage()
			die("Error: 'rename' needs a conversation id and a title")
		}

		a := setup(*configPath, nil)
		defer a.Close()
		id, title := renameCmd.Arg(0), strings.Join(renameCmd.Args()[1:], " ")
		if err := a.store.Rename(id, title); err != nil {
			a.Close()
			die("Error renaming conversation '%s': %v", id, err)
		}
		fmt.Printf("Conversation %s renamed.\n", id)

	case "delete":
		deleteCmd := pflag.NewFlagSet("delete", pflag.ExitOnError)
		configPath := addConfigFlag(deleteCmd)
		deleteCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: localchat history delete <conversation-id>...\n")
			fmt.Fprintf(os.Stderr, "Deletes saved conversations. Unknown ids are ignored.\n")
			deleteCmd.PrintDefaults()
		}
		deleteCmd.Parse(remainingArgs)
		if deleteCmd.NArg() == 0 {
			deleteCmd.Usage()
			die("Error: 'delete' needs at least one conversation id")
		}

		a := setup(*configPath, nil)
		defer a.Close()
		for _, id := range deleteCmd.Args() {
			if err := a.store.Delete(id); err != nil {
				a.Close()
				die("Error deleting conversation '%s': %v", id, err)
			}
			fmt.Printf("Conversation %s deleted.\n", id)
		}

	case "latest":
		latestCmd := pflag.NewFlagSet("latest", pflag.ExitOnError)
		configPath := addConfigFlag(latestCmd)
		latestCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: localchat history latest\n")
			fmt.Fprintf(os.Stderr, "Prints the id of the most recently updated conversation.\n")
			latestCmd.PrintDefaults()
		}
		latestCmd.Parse(remainingArgs)

		a := setup(*configPath, nil)
		defer a.Close()
		id, err := a.store.Latest()
		if errors.Is(err, history.ErrConversationNotFound) {
			a.Close()
			die("No conversations found.")
		}
		fmt.Println(id)

	case "export":
		exportCmd := pflag.NewFlagSet("export", pflag.ExitOnError)
		configPath := addConfigFlag(exportCmd)
		output := exportCmd.StringP("output", "o", "", "Write an HTML transcript to this file instead of markdown to stdout")
		exportCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: localchat history export [-o FILE] <conversation-id>\n")
			fmt.Fprintf(os.Stderr, "Exports a saved conversation as markdown, or as an HTML transcript with -o.\n")
			exportCmd.PrintDefaults()
		}
		exportCmd.Parse(remainingArgs)
		if exportCmd.NArg() != 1 {
			exportCmd.Usage()
			die("Error: 'export' takes exactly one conversation id")
		}

		a := setup(*configPath, nil)
		defer a.Close()
		conv := loadOrDie(a.store, exportCmd.Arg(0))

		if *output == "" {
			fmt.Printf("# %s\n\n", conv.Title)
			for _, msg := range conv.Messages {
				fmt.Printf("## %s\n\n%s\n\n", msg.Role, msg.Content)
			}
			return
		}
		transcript := localchat.NewHTMLTranscript(afero.NewOsFs(), *output, a.logger)
		for _, msg := range conv.Messages {
			transcript.ShowMessage(msg.Role, msg.Content, markup.Render(msg.Content))
		}
		if err := transcript.Err(); err != nil {
			a.Close()
			die("Error writing %s: %v", *output, err)
		}
		fmt.Printf("Conversation %s exported to %s.\n", conv.ID, *output)

	default:
		historyUsage()
		die("Error: Unknown history subcommand '%s'", subcommand)
	}
}

func loadOrDie(store *history.Store, id string) *history.Conversation {
	conv, err := store.Load(id)
	if err != nil {
		die("Error loading conversation '%s': %v", id, err)
	}
	return conv
}
