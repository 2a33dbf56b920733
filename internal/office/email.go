package office

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/jhillyerd/enmime"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

var emailHeaders = []string{"From", "To", "Cc", "Subject", "Date"}

type message struct {
	text        string
	headers     map[string]string
	attachments []string
	warnings    int
}

func parseMessage(data []byte) (message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return message{}, err
	}
	m := message{headers: make(map[string]string), warnings: len(env.Errors)}

	var b strings.Builder
	for _, h := range emailHeaders {
		v := strings.TrimSpace(env.GetHeader(h))
		if v == "" {
			continue
		}
		m.headers[strings.ToLower(h)] = v
		fmt.Fprintf(&b, "%s: %s\n", h, v)
	}
	if id := strings.TrimSpace(env.GetHeader("Message-ID")); id != "" {
		m.headers["message_id"] = id
	}

	body := strings.TrimSpace(env.Text)
	if env.HTML != "" && (body == "" || !hasPlainPart(env)) {
		if md, err := htmlToMarkdown(env.HTML); err == nil {
			body = md
		}
	}
	if body != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(body)
		b.WriteString("\n")
	}

	for _, p := range env.Attachments {
		name := p.FileName
		if name == "" {
			name = p.ContentType
		}
		m.attachments = append(m.attachments, name)
	}
	if len(m.attachments) > 0 {
		fmt.Fprintf(&b, "\nAttachments: %s\n", strings.Join(m.attachments, ", "))
	}
	m.text = strings.TrimSpace(b.String())
	return m, nil
}

// hasPlainPart distinguishes a real text/plain body from the text enmime
// down-converts from HTML-only messages.
func hasPlainPart(env *enmime.Envelope) bool {
	if env.Root == nil {
		return false
	}
	return env.Root.BreadthMatchFirst(func(p *enmime.Part) bool {
		return strings.HasPrefix(p.ContentType, "text/plain") && p.Disposition != "attachment"
	}) != nil
}

func convertEmail(data []byte) (*extract.Result, error) {
	m, err := parseMessage(data)
	if err != nil {
		return nil, common.InvalidInput("parse message", err)
	}
	res := extract.NewResult(m.text)
	res.Set("converter", "enmime").
		Set("email", m.headers).
		Set("attachment_count", len(m.attachments))
	if len(m.attachments) > 0 {
		res.Set("attachments", m.attachments)
	}
	if m.warnings > 0 {
		res.Set("parse_warnings", m.warnings)
	}
	return res, nil
}

// convertMailbox renders every message of an mbox file, separated by "---".
// Unparseable messages are skipped and counted.
func convertMailbox(ctx context.Context, data []byte) (*extract.Result, error) {
	r := mbox.NewReader(bytes.NewReader(data))
	var (
		parts    []string
		subjects []string
		skipped  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := r.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(parts) == 0 && skipped == 0 {
				return nil, common.InvalidInput("read mailbox", err)
			}
			skipped++
			break
		}
		raw, err := io.ReadAll(msg)
		if err != nil {
			skipped++
			continue
		}
		m, err := parseMessage(raw)
		if err != nil {
			skipped++
			continue
		}
		parts = append(parts, m.text)
		if s := m.headers["subject"]; s != "" && len(subjects) < constants.MaxSummariesInMeta {
			subjects = append(subjects, s)
		}
	}

	res := extract.NewResult(strings.Join(parts, "\n\n---\n\n"))
	res.Set("converter", "go-mbox").
		Set("message_count", len(parts)).
		Set("subjects", subjects)
	if skipped > 0 {
		res.Set("skipped_messages", skipped)
		res.Warn(fmt.Sprintf("%d messages could not be parsed", skipped))
	}
	return res, nil
}
