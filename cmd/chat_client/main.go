package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"gourdtalk_client/internal/chat/app"
	"gourdtalk_client/internal/chat/domain"
	"gourdtalk_client/internal/chat/repository"
	"gourdtalk_client/internal/chat/store"
	"gourdtalk_client/internal/chat/transport"
	"gourdtalk_client/pkg/config"
	"gourdtalk_client/pkg/logger"
	"gourdtalk_client/pkg/token"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

func main() {
	userID := flag.String("user", "", "current user id")
	userName := flag.String("name", "", "display name, defaults to the user id")
	peerID := flag.String("peer", "", "counterpart user id")
	flag.Parse()

	if *userID == "" || *peerID == "" {
		fmt.Fprintln(os.Stderr, "usage: chat_client -user <id> -peer <id> [-name <display name>]")
		os.Exit(1)
	}

	logger.Log = logger.Initialize(config.EnvConfig.ChatClient, config.EnvConfig.ChatClientLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Client](config.EnvConfig.ChatClient, config.EnvConfig.ChatClientYAMLPath)
	if cfg.Reconnect.MaxAttempts == 0 {
		cfg.Reconnect = config.DefaultReconnect()
	}

	tok, err := login(cfg.APIBase, *userID, *userName)
	if err != nil {
		logger.Log.Fatal("login failed", zap.Error(err))
	}
	provider := token.StaticProvider(tok)

	ctx := context.Background()
	messages := store.NewMessageStore()
	api := repository.NewHTTPMessageAPI(cfg.APIBase, provider, cfg.RequestTimeout)

	channel := transport.NewWebsocketChannel(cfg.WSURL, cfg.Reconnect.HandshakeTimeout)
	manager := transport.NewManager(channel, messages, *userID, cfg.Reconnect)
	manager.OnOffline(func() {
		fmt.Println("! live updates unavailable, messages still send over REST")
	})
	manager.OnPresence(func(id string, online bool) {
		if id != *userID {
			state := "offline"
			if online {
				state = "online"
			}
			fmt.Printf("* %s is %s\n", id, state)
		}
	})
	if err := manager.Open(tok); err != nil {
		logger.Log.Warn("realtime channel unavailable, REST-only mode", zap.Error(err))
	}
	defer manager.Close()

	printConversations(ctx, api, app.NewAggregator(*userID, messages, nil))

	tracker := app.NewReadStateTracker(api, messages)
	session := app.NewChatSession(api, messages, tracker, manager, provider, *userID)
	session.SetOnMessage(func(m domain.Message) {
		printMessage(*userID, m)
	})
	if err := session.Open(ctx, *peerID); err != nil {
		logger.Log.Fatal("open conversation failed", zap.Error(err))
	}
	defer session.Close()

	for _, m := range session.Messages() {
		printMessage(*userID, m)
	}

	fmt.Printf("chatting with %s. type a message, /retry <id>, /read or /quit\n", *peerID)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return
		case line == "/read":
			if err := session.MarkRead(ctx); err != nil {
				fmt.Println("! read receipt failed, try again")
			}
		case strings.HasPrefix(line, "/retry "):
			if _, err := session.Retry(ctx, strings.TrimPrefix(line, "/retry ")); err != nil {
				fmt.Printf("! retry failed: %v\n", err)
			}
		case line != "":
			if _, err := session.Send(ctx, line); err != nil {
				fmt.Println("! send failed, message kept for /retry")
			}
		}
	}
}

// login registers the user with chatd and returns the session token.
func login(apiBase, userID, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"user_id": userID, "name": name})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(apiBase + "/login")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := fasthttp.Do(req, resp); err != nil {
		return "", err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("login: status %d", resp.StatusCode())
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func printConversations(ctx context.Context, api repository.MessageAPI, agg *app.Aggregator) {
	chats, err := api.ListChats(ctx)
	if err != nil {
		logger.Log.Warn("chat overview unavailable", zap.Error(err))
		return
	}
	conversations := agg.Consolidate(chats)
	if len(conversations) == 0 {
		fmt.Println("no conversations yet")
		return
	}
	fmt.Println("conversations:")
	for _, conv := range conversations {
		marker := " "
		if conv.Unread {
			marker = "*"
		}
		fmt.Printf(" %s %-12s %s (%s)\n", marker, conv.Counterpart.Name,
			conv.LastMessage, conv.LastMessageTimestamp.Local().Format("15:04"))
	}
}

func printMessage(currentUserID string, m domain.Message) {
	prefix := "<"
	if m.SenderID == currentUserID {
		prefix = ">"
	}
	suffix := ""
	switch m.Delivery {
	case domain.DeliveryPending:
		suffix = " (sending...)"
	case domain.DeliveryFailed:
		suffix = fmt.Sprintf(" (failed, /retry %s)", m.ID)
	}
	fmt.Printf("%s [%s] %s%s\n", prefix, m.Timestamp.Local().Format("15:04:05"), m.Body, suffix)
}
