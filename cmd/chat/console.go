package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/omochice/toy-direct-chat/internal/chat"
	"github.com/samber/lo"
)

type commandKind int

const (
	cmdSubmit commandKind = iota
	cmdMe
	cmdTo
	cmdConnect
	cmdDisconnect
	cmdStatus
	cmdLog
	cmdQuit
	cmdUnknown
)

type command struct {
	kind commandKind
	arg  string
}

var commandNames = map[string]commandKind{
	"/me":         cmdMe,
	"/to":         cmdTo,
	"/connect":    cmdConnect,
	"/disconnect": cmdDisconnect,
	"/status":     cmdStatus,
	"/log":        cmdLog,
	"/quit":       cmdQuit,
}

// parseCommand maps one input line to a command. Lines that do not start
// with '/' are message text and keep their inner whitespace.
func parseCommand(line string) command {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return command{kind: cmdSubmit, arg: line}
	}
	name, arg, _ := strings.Cut(trimmed, " ")
	kind, ok := commandNames[name]
	if !ok {
		return command{kind: cmdUnknown, arg: name}
	}
	return command{kind: kind, arg: strings.TrimSpace(arg)}
}

var categoryColors = map[chat.Category]color.Color{
	chat.CategorySystem:   color.FgCyan,
	chat.CategoryInbound:  color.FgGreen,
	chat.CategoryOutbound: color.FgBlue,
	chat.CategoryError:    color.FgRed,
}

// console renders the session to out and executes commands against it.
type console struct {
	session     *chat.Session
	sendTimeout time.Duration

	outMu sync.Mutex
	out   io.Writer

	sends sync.WaitGroup
}

func newConsole(out io.Writer, sendTimeout time.Duration) *console {
	return &console{out: out, sendTimeout: sendTimeout}
}

func (c *console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = fmt.Fprintf(c.out, format+"\n", args...)
}

// printEntry is registered as a Log observer.
func (c *console) printEntry(e chat.Entry) {
	stamp := e.At.Format("15:04:05")
	c.printf("%s %s", color.FgGray.Render(stamp), categoryColors[e.Category].Render(e.Text))
}

// printClose is registered as the Manager close observer.
func (c *console) printClose(evt chat.CloseEvent) {
	if evt.Err != nil {
		c.printf("%s", color.FgYellow.Render(fmt.Sprintf("-- disconnected (%s): %v", evt.Reason, evt.Err)))
		return
	}
	c.printf("%s", color.FgYellow.Render(fmt.Sprintf("-- disconnected (%s)", evt.Reason)))
}

func (c *console) status() string {
	connected := c.session.Connected()
	state := lo.Ternary(connected, color.FgGreen.Render("connected"), color.FgRed.Render("not connected"))
	return fmt.Sprintf("%s | me=%s to=%s", state, c.session.Identities.Local(), c.session.Identities.Target())
}

// execute runs one command. It returns false when the console should exit.
func (c *console) execute(ctx context.Context, cmd command) bool {
	switch cmd.kind {
	case cmdQuit:
		return false
	case cmdMe:
		switch {
		case cmd.arg == "":
			c.printf("usage: /me <identity>")
		case c.session.Connected():
			c.printf("disconnect before changing identity")
		default:
			c.session.Identities.SetLocal(cmd.arg)
			c.printf("%s", c.status())
		}
	case cmdTo:
		if cmd.arg == "" {
			c.printf("usage: /to <identity>")
			break
		}
		c.session.Identities.SetTarget(cmd.arg)
		c.printf("%s", c.status())
	case cmdConnect:
		dialCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
		c.session.Connect(dialCtx)
		cancel()
		c.printf("%s", c.status())
	case cmdDisconnect:
		c.session.Disconnect()
		c.printf("%s", c.status())
	case cmdStatus:
		c.printf("%s", c.status())
	case cmdLog:
		entries := c.session.Log.Snapshot()
		c.printf("-- %d entries", len(entries))
		for _, e := range entries {
			c.printEntry(e)
		}
	case cmdUnknown:
		c.printf("unknown command %s", cmd.arg)
	case cmdSubmit:
		c.session.SetInput(cmd.arg)
		c.submit(ctx, cmd.arg)
	}
	return true
}

// submit sends body in the background; the outcome shows up in the log.
// body is captured here so a later line cannot replace it before the send.
func (c *console) submit(ctx context.Context, body string) {
	c.sends.Add(1)
	go func() {
		defer c.sends.Done()
		sendCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
		defer cancel()
		c.session.SubmitText(sendCtx, body)
	}()
}

// wait blocks until every background send has finished.
func (c *console) wait() {
	c.sends.Wait()
}
