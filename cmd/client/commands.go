package main

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/chzyer/readline"

	"github.com/omochice/chatsocket/pkg/protocol"
)

// commandFunc runs a command and returns text to print.
type commandFunc func(a *app, args []string) string

type command struct {
	name     string
	fn       commandFunc
	argsInfo string
	desc     string
	minArgs  int
}

// commands is the command table, keyed by lower-case name.
type commands map[string]*command

func (c commands) register(name string, minArgs int, fn commandFunc, argsInfo, desc string) {
	c[strings.ToLower(name)] = &command{
		name:     name,
		fn:       fn,
		argsInfo: argsInfo,
		desc:     desc,
		minArgs:  minArgs,
	}
}

// find splits input and looks up its first word.
func (c commands) find(input string) (*command, []string) {
	args := splitArgs(input)
	if len(args) == 0 {
		return nil, nil
	}
	return c[strings.ToLower(args[0])], args[1:]
}

// execute runs one input line against a.
func (c commands) execute(a *app, input string) string {
	cmd, args := c.find(input)
	if cmd == nil {
		if strings.TrimSpace(input) == "" {
			return ""
		}
		return fmt.Sprintf("unknown command: %s (try help)", input)
	}
	if len(args) < cmd.minArgs {
		return fmt.Sprintf("usage: %s %s", cmd.name, cmd.argsInfo)
	}
	return cmd.fn(a, args)
}

func (c commands) names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (c commands) completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(c))
	for _, name := range c.names() {
		if name == "typing" {
			items = append(items, readline.PcItem(name, readline.PcItem("on"), readline.PcItem("off")))
			continue
		}
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

func (c commands) help() string {
	rows := [][3]string{{"Command", "Args", "Desc"}}
	for _, name := range c.names() {
		cmd := c[name]
		rows = append(rows, [3]string{cmd.name, cmd.argsInfo, cmd.desc})
	}

	var width [3]int
	for _, row := range rows {
		for i, cell := range row {
			width[i] = max(width[i], utf8.RuneCountInString(cell))
		}
	}

	var b strings.Builder
	format := fmt.Sprintf("%%-%ds  %%-%ds  %%s\n", width[0], width[1])
	for _, row := range rows {
		fmt.Fprintf(&b, format, row[0], row[1], row[2])
	}
	return b.String()
}

// splitArgs splits on blanks, honoring single or double quotes and
// backslash escapes.
func splitArgs(input string) []string {
	var result []string
	var current strings.Builder
	var quote rune
	escaped := false
	pending := false

	for _, r := range input {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
			pending = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			pending = true
		case r == ' ' || r == '\t':
			if pending || current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
				pending = false
			}
		default:
			current.WriteRune(r)
		}
	}

	if pending || current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func newCommands() commands {
	c := commands{}
	c.register("send", 2, cmdSend, "<user> <text>", "send a text message")
	c.register("link", 2, cmdLink, "<user> <url> [text]", "send a message with a link")
	c.register("media", 2, cmdMedia, "<user> <url> [text]", "send a message with a media attachment")
	c.register("join", 1, cmdJoin, "<user>", "open a conversation")
	c.register("leave", 1, cmdLeave, "<user>", "leave a conversation")
	c.register("typing", 2, cmdTyping, "<user> on|off", "send a typing indicator")
	c.register("delete", 1, cmdDelete, "<messageId>", "delete one of your messages")
	c.register("history", 1, cmdHistory, "<user> [keyword]", "fetch conversation history")
	c.register("list", 0, cmdList, "[keyword]", "fetch your conversation list")
	c.register("online", 1, cmdOnline, "<user>", "check whether a user is online")
	c.register("messages", 0, cmdMessages, "", "show messages received on this connection")
	c.register("bye", 0, cmdBye, "", "tell the server you are going offline")
	c.register("login", 1, cmdLogin, "<user>", "reconnect as another user")
	c.register("logout", 0, cmdLogout, "", "close the connection")
	c.register("status", 0, cmdStatus, "", "show connection state")
	c.register("help", 0, cmdHelp, "", "show this help")
	c.register("quit", 0, cmdQuit, "", "disconnect and exit")
	return c
}

func cmdSend(a *app, args []string) string {
	a.manager.SendMessage(args[0], protocol.Message{Text: strings.Join(args[1:], " ")})
	return ""
}

func cmdLink(a *app, args []string) string {
	a.manager.SendMessage(args[0], protocol.Message{Text: strings.Join(args[2:], " "), Link: args[1]})
	return ""
}

func cmdMedia(a *app, args []string) string {
	a.manager.SendMessage(args[0], protocol.Message{Text: strings.Join(args[2:], " "), Media: args[1]})
	return ""
}

func cmdJoin(a *app, args []string) string {
	a.manager.JoinConversation(args[0])
	return ""
}

func cmdLeave(a *app, args []string) string {
	a.manager.LeaveConversation(args[0])
	return ""
}

func cmdTyping(a *app, args []string) string {
	switch strings.ToLower(args[1]) {
	case "on":
		a.manager.UpdateTypingAlert(args[0], true)
	case "off":
		a.manager.UpdateTypingAlert(args[0], false)
	default:
		return "usage: typing <user> on|off"
	}
	return ""
}

func cmdDelete(a *app, args []string) string {
	a.manager.DeleteMessage(args[0])
	return ""
}

func cmdHistory(a *app, args []string) string {
	keyword := ""
	if len(args) > 1 {
		keyword = strings.Join(args[1:], " ")
	}
	a.manager.RetrieveMessages(args[0], keyword)
	return ""
}

func cmdList(a *app, args []string) string {
	a.manager.GetConversationList(strings.Join(args, " "))
	return ""
}

func cmdOnline(a *app, args []string) string {
	a.manager.CheckOnlineStatus(args[0])
	return ""
}

func cmdMessages(a *app, _ []string) string {
	messages := a.manager.Messages()
	if len(messages) == 0 {
		return "no messages"
	}
	var b strings.Builder
	for _, p := range messages {
		msg := protocol.MessageFromPayload(p.Map("message"))
		fmt.Fprintf(&b, "%s  %s: %s", p.String("messageId"), p.String("senderId"), msg.Text)
		if msg.Link != "" {
			fmt.Fprintf(&b, " <%s>", msg.Link)
		}
		if msg.Media != "" {
			fmt.Fprintf(&b, " [%s]", msg.Media)
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func cmdBye(a *app, _ []string) string {
	a.manager.DisconnectUser()
	return ""
}

func cmdLogin(a *app, args []string) string {
	a.manager.Configure(a.ctx, a.serverURL, args[0])
	return fmt.Sprintf("connecting to %s as %s", a.serverURL, args[0])
}

func cmdLogout(a *app, _ []string) string {
	a.manager.Teardown()
	return "disconnected"
}

func cmdStatus(a *app, _ []string) string {
	return fmt.Sprintf("%s as %q on %s", a.manager.State(), a.manager.UserID(), a.manager.ServerAddress())
}

func cmdHelp(a *app, _ []string) string {
	return a.commands.help()
}

func cmdQuit(a *app, _ []string) string {
	a.quit = true
	return ""
}
