package telegram

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
	"golang.org/x/time/rate"

	"calcnotify/internal/transport"
	"calcnotify/pkg/logx"
	"calcnotify/pkg/tghtml"
)

const (
	// maxAlbumSize is Telegram's hard ceiling for one media group.
	maxAlbumSize = 10

	// textLimit is Telegram's message body limit in runes.
	textLimit = 4096

	truncationMarker = "\n\n... (message truncated)"
)

type Config struct {
	Token string

	// ChatTarget names the destination chat and optional forum topic.
	transport.ChatTarget

	// CallTimeout bounds each HTTP call to the Bot API. Default 60s.
	CallTimeout time.Duration

	// RatePerSec caps outbound calls. Default 10.
	RatePerSec int

	// Offline skips the getMe handshake; used by tooling that only needs to
	// construct the client.
	Offline bool
}

// Client implements transport.Messenger over the Telegram Bot API.
type Client struct {
	cfg     Config
	log     logx.Logger
	bot     *tele.Bot
	limiter *rate.Limiter
}

var _ transport.Messenger = (*Client)(nil)

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (c *Client) recipient() *tele.Chat { return &tele.Chat{ID: c.cfg.ChatID} }

func (c *Client) sendOptions() *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ThreadID:              c.cfg.ThreadID,
	}
}

// wait blocks on the rate limiter and the context.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return ctx.Err()
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) SendMediaGroup(ctx context.Context, imagePaths []string, captionHTML string) ([]int, error) {
	if len(imagePaths) == 0 {
		return nil, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	msgs, err := c.bot.SendAlbum(c.recipient(), buildAlbum(imagePaths, captionHTML), c.sendOptions())
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	c.log.Debug("media group sent", logx.Int("photos", len(imagePaths)), logx.Int("messages", len(ids)))
	return ids, nil
}

func (c *Client) SendDocument(ctx context.Context, path string, captionHTML string) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	doc := &tele.Document{
		File:     tele.FromDisk(path),
		FileName: filepath.Base(path),
		Caption:  captionHTML,
	}
	msg, err := c.bot.Send(c.recipient(), doc, c.sendOptions())
	if err != nil {
		return 0, err
	}
	c.log.Debug("document sent", logx.String("file", doc.FileName), logx.Int("message_id", msg.ID))
	return msg.ID, nil
}

func (c *Client) SendText(ctx context.Context, text string) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	msg, err := c.bot.Send(c.recipient(), tghtml.TruncRunes(text, textLimit, truncationMarker), c.sendOptions())
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID int) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.bot.Delete(tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    c.cfg.ChatID,
	})
}

// buildAlbum caps the input at the endpoint's album limit and attaches the
// caption to the first photo only.
func buildAlbum(imagePaths []string, captionHTML string) tele.Album {
	if len(imagePaths) > maxAlbumSize {
		imagePaths = imagePaths[:maxAlbumSize]
	}
	album := make(tele.Album, 0, len(imagePaths))
	for i, path := range imagePaths {
		photo := &tele.Photo{File: tele.FromDisk(path)}
		if i == 0 && captionHTML != "" {
			photo.Caption = captionHTML
		}
		album = append(album, photo)
	}
	return album
}
