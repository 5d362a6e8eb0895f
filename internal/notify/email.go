package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/yuin/goldmark"
)

// EmailDraftChannel writes campaign updates as RFC 5322 draft files for
// review. Nothing is sent; an operator's mail tooling picks drafts up
// from the configured directory.
type EmailDraftChannel struct {
	from      string
	recipient string
	dir       string
}

// NewEmailDraftChannel creates an email draft channel. dir defaults to
// "drafts" and is created on first use.
func NewEmailDraftChannel(from, recipient, dir string) *EmailDraftChannel {
	if dir == "" {
		dir = "drafts"
	}
	return &EmailDraftChannel{from: from, recipient: recipient, dir: dir}
}

// Name implements Channel.
func (c *EmailDraftChannel) Name() string { return "email_draft" }

// Send implements Channel.
func (c *EmailDraftChannel) Send(_ context.Context, u Update) error {
	msg, err := c.compose(u)
	if err != nil {
		return fmt.Errorf("compose draft: %w", err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create drafts dir: %w", err)
	}

	name := fmt.Sprintf("draft_%s_%d.eml", u.MediaBuyID, u.OccurredAt.UnixMilli())
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, msg, 0o644); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	return nil
}

// compose builds a multipart/alternative message with the markdown body
// as text/plain and its HTML rendering.
func (c *EmailDraftChannel) compose(u Update) ([]byte, error) {
	body := renderMarkdown(u)

	var buf bytes.Buffer
	var h mail.Header
	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(fmt.Sprintf("Campaign update: %s (%s)", u.Brand, u.MediaBuyID))

	from, err := mail.ParseAddress(c.from)
	if err != nil {
		return nil, fmt.Errorf("parse from address %q: %w", c.from, err)
	}
	h.SetAddressList("From", []*mail.Address{from})

	to, err := mail.ParseAddress(c.recipient)
	if err != nil {
		return nil, fmt.Errorf("parse recipient address %q: %w", c.recipient, err)
	}
	h.SetAddressList("To", []*mail.Address{to})

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline writer: %w", err)
	}

	var ph mail.InlineHeader
	ph.Set("Content-Type", "text/plain; charset=utf-8")
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return nil, fmt.Errorf("create plain part: %w", err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return nil, fmt.Errorf("write plain part: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("close plain part: %w", err)
	}

	var htmlBuf bytes.Buffer
	if err := goldmark.Convert([]byte(body), &htmlBuf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	var hh mail.InlineHeader
	hh.Set("Content-Type", "text/html; charset=utf-8")
	hw, err := tw.CreatePart(hh)
	if err != nil {
		return nil, fmt.Errorf("create html part: %w", err)
	}
	fmt.Fprintf(hw, `<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; font-size: 14px; line-height: 1.5;">
%s
</body></html>`, htmlBuf.String())
	if err := hw.Close(); err != nil {
		return nil, fmt.Errorf("close html part: %w", err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close inline writer: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}

	return buf.Bytes(), nil
}
