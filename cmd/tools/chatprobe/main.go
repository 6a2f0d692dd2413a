package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ecomxpert/storefront/backend/internal/config"
	"github.com/ecomxpert/storefront/backend/internal/model/chat"
	chatService "github.com/ecomxpert/storefront/backend/internal/service/chat"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/pkg/log"
)

func main() {
	log.Init(log.Config{Level: "info", Pretty: true, Service: "chatprobe"})
	logger := log.L()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Err(err).Msg("无法加载 .env，改用系统环境变量")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("配置加载失败")
	}

	mode := flag.String("mode", "", "测试模式: inbox、history 或 send")
	token := flag.String("token", os.Getenv("MARKETPLACE_TOKEN"), "访问上游 API 的 Bearer token")
	viewer := flag.String("viewer", "probe", "当前用户 ID")
	recipient := flag.String("to", "", "对方用户 ID (history/send 模式必填)")
	text := flag.String("text", "", "发送的文本")
	media := flag.String("media", "", "附件文件路径，多个用逗号分隔")
	timeout := flag.Duration("timeout", 30*time.Second, "请求超时时间")

	flag.Parse()

	if *mode != "inbox" && *mode != "history" && *mode != "send" {
		flag.Usage()
		logger.Fatal().Msg("请通过 -mode=inbox|history|send 指定测试模式")
	}
	if *mode != "inbox" && *recipient == "" {
		logger.Fatal().Msg("history/send 模式需要通过 -to 指定对方用户 ID")
	}

	client := marketplace.New(cfg.Marketplace.BaseURL, cfg.Marketplace.AssetURL, cfg.Marketplace.Timeout)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = marketplace.WithToken(ctx, *token)

	switch *mode {
	case "inbox":
		runInbox(ctx, client)
	case "history":
		runHistory(ctx, client, *recipient)
	case "send":
		svc := chatService.NewService(client, chatService.Options{MaxAttachments: cfg.Chat.MaxAttachments})
		runSend(ctx, svc, chatService.Viewer{ID: *viewer, Token: *token}, *recipient, *text, *media)
	}
}

func runInbox(ctx context.Context, client *marketplace.Client) {
	summaries, err := client.ListChats(ctx)
	if err != nil {
		log.L().Fatal().Err(err).Msg("获取会话列表失败")
	}
	for _, s := range summaries {
		last := ""
		if s.LastMessage != nil {
			last = s.LastMessage.Text
		}
		fmt.Printf("%-8s %-24s unread=%d %q\n", s.ID, s.OtherUser.Name, s.UnreadCount, last)
	}
	log.L().Info().Int("chats", len(summaries)).Msg("inbox 获取成功")
}

func runHistory(ctx context.Context, client *marketplace.Client, recipient string) {
	thread, err := client.FindOrCreateChat(ctx, recipient)
	if err != nil {
		log.L().Fatal().Err(err).Msg("打开会话失败")
	}
	messages, err := client.ListMessages(ctx, thread.ID)
	if err != nil {
		log.L().Fatal().Err(err).Msg("获取消息失败")
	}
	for _, m := range messages {
		fmt.Printf("[%s] %s: %s (media=%d)\n", m.Timestamp.Format(time.RFC3339), m.SenderID, m.Text, len(m.Media))
	}
	log.L().Info().Str("chat_id", thread.ID).Int("messages", len(messages)).Msg("历史消息获取成功")
}

func runSend(ctx context.Context, svc *chatService.Service, viewer chatService.Viewer, recipient, text, mediaPaths string) {
	files, err := readAttachments(mediaPaths)
	if err != nil {
		log.L().Fatal().Err(err).Msg("读取附件失败")
	}

	sub, err := svc.Subscribe(viewer)
	if err != nil {
		log.L().Fatal().Err(err).Msg("订阅会话事件失败")
	}
	defer svc.Unsubscribe(sub)

	if _, err := svc.Open(ctx, viewer, recipient, chat.Participant{ID: recipient}); err != nil {
		log.L().Fatal().Err(err).Msg("打开会话失败")
	}

	pending, err := svc.Send(ctx, viewer, recipient, text, files)
	if err != nil {
		log.L().Fatal().Err(err).Msg("发送失败")
	}
	log.L().Info().Str("temp_id", pending.ID).Msg("乐观消息已显示，等待上游确认")

	// 后台投递完成后再读取会话状态
	svc.Wait()

	session, err := svc.Session(viewer, recipient)
	if err != nil {
		log.L().Fatal().Err(err).Msg("读取会话失败")
	}
	// 失败时乐观消息会被移除，成功时替换为服务端消息
	for _, m := range session.Messages {
		if !m.Pending() && m.Text == pending.Text && len(m.Media) == len(pending.Media) {
			log.L().Info().Str("chat_id", session.ChatID).Str("message_id", m.ID).Msg("发送成功")
			return
		}
	}
	log.L().Error().Str("temp_id", pending.ID).Msg("上游未确认，乐观消息已撤回")
}

func readAttachments(paths string) ([]chat.Attachment, error) {
	if strings.TrimSpace(paths) == "" {
		return nil, nil
	}
	var files []chat.Attachment
	for _, p := range strings.Split(paths, ",") {
		p = strings.TrimSpace(p)
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, chat.Attachment{
			Name:        filepath.Base(p),
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(p))),
			Data:        data,
		})
	}
	return files, nil
}
