package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/zhouzirui/nexus-social/backend/internal/app"
	"github.com/zhouzirui/nexus-social/backend/internal/config"
	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
)

var (
	sessionFlag = flag.String("session", "c1", "会话 ID")
	senderFlag  = flag.String("as", "", "发送者 ID，默认使用当前用户")
	verbose     = flag.Bool("v", false, "输出服务日志")
)

var (
	boldGreen  = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	boldYellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	faint      = color.New(color.Faint).SprintFunc()
	red        = color.New(color.FgRed).SprintFunc()
)

type console struct {
	core     *app.Core
	sender   string
	session  string
	seen     map[string]int
	names    map[string]string
	assistID string
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	var logOut io.Writer = io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))
	log.SetOutput(logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := app.NewCore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(fmt.Sprintf("初始化失败: %v", err)))
		os.Exit(1)
	}

	c := &console{
		core:     core,
		sender:   *senderFlag,
		seen:     make(map[string]int),
		names:    make(map[string]string),
		assistID: cfg.Chat.AssistantID,
	}
	if c.sender == "" {
		c.sender = core.Catalog.CurrentUser().ID
	}
	for _, u := range core.Catalog.Users() {
		c.names[u.ID] = u.Name
	}

	fmt.Println(boldGreen("Nexus Social chat console"))
	if core.Provider.Available() {
		fmt.Printf("Model: %s\n", boldCyan(cfg.AI.Model))
	} else {
		fmt.Println(faint("Provider offline (no Ark credentials)"))
	}
	fmt.Println("Commands: /list, /open <id>, /help, /quit")
	fmt.Println()

	c.open(ctx, *sessionFlag)
	c.loop(ctx, os.Stdin)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = core.Orchestrator.Shutdown(shutdownCtx)
}

func (c *console) loop(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Print(boldGreen(c.session + "> "))
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "exit":
			return
		case line == "/help":
			fmt.Println("/list          列出会话")
			fmt.Println("/open <id>     切换会话")
			fmt.Println("/quit          退出")
		case line == "/list":
			c.list(ctx)
		case strings.HasPrefix(line, "/open"):
			c.open(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/open")))
		default:
			c.send(ctx, line)
		}
	}
}

func (c *console) list(ctx context.Context) {
	for _, s := range c.core.Chat.ListSessions(ctx) {
		marker := " "
		if s.ID == c.session {
			marker = "*"
		}
		preview := faint("(no messages)")
		if s.LastMessage != nil {
			preview = fmt.Sprintf("%s: %s", c.names[s.LastMessage.SenderID], s.LastMessage.Content)
		}
		fmt.Printf("%s %s  %s  %s\n", marker, boldYellow(s.ID), c.title(s), preview)
	}
}

func (c *console) open(ctx context.Context, sessionID string) {
	session, err := c.core.Chat.GetSession(ctx, sessionID)
	if err != nil {
		fmt.Println(red(err.Error()))
		return
	}

	c.session = session.ID
	c.seen[session.ID] = 0
	fmt.Printf("== %s ==\n", boldYellow(c.title(session)))
	c.printNew(session)
}

func (c *console) send(ctx context.Context, content string) {
	if _, err := c.core.Orchestrator.SendMessage(ctx, c.session, c.sender, content); err != nil {
		fmt.Println(red(err.Error()))
		return
	}

	if session, err := c.core.Chat.GetSession(ctx, c.session); err == nil && session.Pending {
		fmt.Println(faint("typing..."))
	}
	c.core.Orchestrator.Wait()

	session, err := c.core.Chat.GetSession(ctx, c.session)
	if err != nil {
		fmt.Println(red(err.Error()))
		return
	}
	c.printNew(session)
}

func (c *console) printNew(session chat.Session) {
	for _, m := range session.Messages[c.seen[session.ID]:] {
		name := c.names[m.SenderID]
		if name == "" {
			name = m.SenderID
		}
		stamp := faint(time.UnixMilli(m.Timestamp).Format("15:04"))

		switch m.SenderID {
		case c.sender:
			fmt.Printf("%s %s %s\n", stamp, boldGreen(name+":"), m.Content)
		case c.assistID:
			fmt.Printf("%s %s %s\n", stamp, boldCyan(name+":"), m.Content)
		default:
			fmt.Printf("%s %s %s\n", stamp, boldYellow(name+":"), m.Content)
		}
	}
	c.seen[session.ID] = len(session.Messages)
}

func (c *console) title(s chat.Session) string {
	if s.Name != "" {
		return s.Name
	}
	names := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.ID == c.sender {
			continue
		}
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}
