package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/service"
	xhttp "PulseScan/pkg/http"
	"PulseScan/pkg/logger"
)

var ErrMissingCredentials = errors.New("telegram credentials missing")

type Options struct {
	BaseURL        string
	BotToken       string
	ChatID         string
	HighRiskChatID string
}

type sendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notifier posts alerts to a Telegram chat chosen by tier.
type Notifier struct {
	client *xhttp.Client
	opts   Options
	log    *logger.Logger
	now    func() time.Time
}

func NewNotifier(client *xhttp.Client, opts Options, log *logger.Logger) *Notifier {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.telegram.org"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{client: client, opts: opts, log: log, now: time.Now}
}

func (n *Notifier) chatFor(tier models.Tier) string {
	if tier == models.TierHighRisk {
		return n.opts.HighRiskChatID
	}
	return n.opts.ChatID
}

func (n *Notifier) Notify(ctx context.Context, a service.Alert) error {
	chat := n.chatFor(a.Asset.Tier)
	if n.opts.BotToken == "" || chat == "" {
		return fmt.Errorf("%w for %s tier", ErrMissingCredentials, a.Asset.Tier)
	}

	var resp sendResponse
	err := n.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(n.opts.BaseURL, "/"), n.opts.BotToken),
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body: map[string]string{
			"chat_id":                  chat,
			"text":                     FormatMessage(a, n.now()),
			"parse_mode":               "Markdown",
			"disable_web_page_preview": "false",
		},
	}, &resp)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram rejected message: %s", resp.Description)
	}
	return nil
}

// DryRunNotifier logs rendered alerts instead of sending them.
type DryRunNotifier struct {
	log *logger.Logger
	now func() time.Time
}

func NewDryRunNotifier(log *logger.Logger) *DryRunNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &DryRunNotifier{log: log, now: time.Now}
}

func (d *DryRunNotifier) Notify(_ context.Context, a service.Alert) error {
	d.log.Info("dry run alert",
		logger.String("symbol", a.Asset.Symbol),
		logger.String("tier", string(a.Asset.Tier)),
		logger.String("direction", string(a.Signal.Direction)),
		logger.String("message", FormatMessage(a, d.now())),
	)
	return nil
}

var (
	_ service.Notifier = (*Notifier)(nil)
	_ service.Notifier = (*DryRunNotifier)(nil)
)
