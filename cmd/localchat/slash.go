package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dhamidi/localchat"
)

// slashCommand is a parsed "/name args..." line.
type slashCommand struct {
	name string
	args []string
	// rest is everything after the name, with surrounding space removed.
	rest string
}

func parseSlashCommand(line string) (slashCommand, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || len(line) == 1 {
		return slashCommand{}, false
	}
	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	return slashCommand{name: strings.ToLower(name), args: strings.Fields(rest), rest: rest}, true
}

const slashHelp = `Commands:
  /save [title]        Save the conversation, optionally naming it
  /history             List saved conversations
  /load ID             Load a saved conversation
  /delete ID           Delete a saved conversation
  /rename ID TITLE     Rename a saved conversation
  /new                 Save and start a new conversation
  /clear               Discard the current conversation
  /usage               Show input token usage
  /quit                Leave`

// runSlashCommand executes cmd and reports whether the chat should end.
// Failures are reported to the display by the session.
func runSlashCommand(session *localchat.Session, display localchat.Display, cmd slashCommand) bool {
	switch cmd.name {
	case "save":
		session.SaveManually(cmd.rest)
	case "history":
		summaries := session.Summaries()
		if len(summaries) == 0 {
			display.ShowNotice("No conversations found.")
			break
		}
		var b strings.Builder
		for i, s := range summaries {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s  %s  %q (%d messages)", s.ID, s.LastUpdatedAt.Local().Format(time.DateTime), s.Title, s.MessageCount)
		}
		display.ShowNotice(b.String())
	case "load":
		if len(cmd.args) != 1 {
			display.ShowError("usage: /load ID")
			break
		}
		session.Load(cmd.args[0])
	case "delete":
		if len(cmd.args) != 1 {
			display.ShowError("usage: /delete ID")
			break
		}
		session.Delete(cmd.args[0])
	case "rename":
		id, title, _ := strings.Cut(cmd.rest, " ")
		if id == "" || strings.TrimSpace(title) == "" {
			display.ShowError("usage: /rename ID TITLE")
			break
		}
		session.Rename(id, title)
	case "new":
		session.NewConversation()
	case "clear":
		session.Clear()
	case "usage":
		display.ShowUsage(session.Usage())
	case "help":
		display.ShowNotice(slashHelp)
	case "quit", "exit":
		return true
	default:
		display.ShowError("unknown command /%s, type /help for a list", cmd.name)
	}
	return false
}
