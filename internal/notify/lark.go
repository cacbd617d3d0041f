package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when a Lark notifier lacks credentials or a
// target chat.
var ErrNotConfigured = errors.New("lark notifier is not configured")

// LarkConfig holds Lark notifier configuration
type LarkConfig struct {
	AppID     string        `mapstructure:"app_id"`
	AppSecret string        `mapstructure:"app_secret"`
	ChatID    string        `mapstructure:"chat_id"`
	Attempts  uint          `mapstructure:"attempts"`
	Delay     time.Duration `mapstructure:"delay"`
}

// Enabled reports whether every field needed to send is set.
func (c LarkConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != "" && c.ChatID != ""
}

// MessageSender delivers one message to a chat.
type MessageSender interface {
	SendText(ctx context.Context, chatID, text string) (string, error)
}

// LarkNotifier posts job summaries to a Lark group chat.
type LarkNotifier struct {
	sender MessageSender
	chatID string
	opts   []retry.Option
	logger *zap.Logger
}

// NewLarkNotifier creates a notifier backed by the Lark IM API.
func NewLarkNotifier(cfg LarkConfig, logger *zap.Logger) (*LarkNotifier, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelWarn),
		lark.WithEnableTokenCache(true),
	)
	return NewLarkNotifierWithSender(&imSender{client: client, logger: logger}, cfg, logger), nil
}

// NewLarkNotifierWithSender creates a notifier that delivers through sender.
func NewLarkNotifierWithSender(sender MessageSender, cfg LarkConfig, logger *zap.Logger) *LarkNotifier {
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = time.Second
	}

	n := &LarkNotifier{
		sender: sender,
		chatID: cfg.ChatID,
		logger: logger,
	}
	n.opts = []retry.Option{
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			n.logger.Warn("Lark notification failed, retrying",
				zap.Uint("attempt", attempt+1),
				zap.Error(err))
		}),
	}
	return n
}

// JobFinished sends the job summary, retrying transient failures.
func (n *LarkNotifier) JobFinished(ctx context.Context, s Summary) error {
	text := Text(s)
	var messageID string

	opts := append([]retry.Option{retry.Context(ctx)}, n.opts...)
	err := retry.Do(func() error {
		id, err := n.sender.SendText(ctx, n.chatID, text)
		if err != nil {
			return err
		}
		messageID = id
		return nil
	}, opts...)
	if err != nil {
		n.logger.Error("Failed to deliver job notification",
			zap.String("job_id", s.JobID),
			zap.Error(err))
		return fmt.Errorf("failed to send lark notification: %w", err)
	}

	n.logger.Info("Job notification sent",
		zap.String("job_id", s.JobID),
		zap.String("message_id", messageID))
	return nil
}

type imSender struct {
	client *lark.Client
	logger *zap.Logger
}

func (s *imSender) SendText(ctx context.Context, chatID, text string) (string, error) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", retry.Unrecoverable(err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := s.client.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		s.logger.Debug("Lark API returned failure",
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	return messageID, nil
}
