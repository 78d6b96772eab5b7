package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iliyamo/meeting-room-bot/internal/conversation"
)

// Replier sends conversation replies through the Bot API.
type Replier struct {
	api API
}

func NewReplier(api API) *Replier { return &Replier{api: api} }

func (r *Replier) Reply(ctx context.Context, chatID int64, rep conversation.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, rep.Text)
	if rep.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	switch {
	case len(rep.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, len(rep.Keyboard))
		for i, k := range rep.Keyboard {
			rows[i] = tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(k))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.OneTimeKeyboard = true
		kb.ResizeKeyboard = true
		msg.ReplyMarkup = kb
	case rep.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}
	if _, err := r.api.Send(msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (r *Replier) SendFile(ctx context.Context, chatID int64, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := r.api.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// FileFetcher downloads uploaded files from the Bot API file endpoint.
type FileFetcher struct {
	api    API
	client *http.Client
}

func NewFileFetcher(api API, client *http.Client) *FileFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &FileFetcher{api: api, client: client}
}

func (f *FileFetcher) Fetch(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := f.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
