// Package webhook turns chat messages forwarded by the bot automation
// pipeline into stored transactions.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dashfin/internal/classifier"
	"dashfin/internal/database"
	"dashfin/internal/identify"
	"dashfin/internal/ledger"
	"dashfin/internal/logger"
	"dashfin/internal/models"
)

var (
	ErrMissingFields   = errors.New("messageType, content and phoneNumber are required")
	ErrUnsupportedType = errors.New("unsupported message type")
)

const maxEstabelecimentoRunes = 50

// Message is the payload the pipeline posts. Content is the message text,
// or the OCR/transcription of an image or audio message.
type Message struct {
	MessageType     string `json:"messageType"`
	Content         string `json:"content"`
	PhoneNumber     string `json:"phoneNumber"`
	Timestamp       any    `json:"timestamp,omitempty"` // RFC 3339 string or unix milliseconds
	MessageID       string `json:"messageId,omitempty"`
	MediaURL        string `json:"mediaUrl,omitempty"`
	OriginalMessage any    `json:"originalMessage,omitempty"`
}

// Outcome is the result of processing one message. Transaction is nil
// when no amount could be extracted and the message needs manual review.
type Outcome struct {
	Result      classifier.Result
	Source      string
	Transaction *models.Transacao
}

func (o Outcome) NeedsManualReview() bool {
	return o.Transaction == nil
}

// Options configures a Processor
type Options struct {
	DefaultUser string
	Defaults    identify.Defaults
	Now         func() time.Time
}

type Processor struct {
	db          *database.DB
	users       *ledger.Ledger
	defaultUser string
	defaults    identify.Defaults
	now         func() time.Time
}

func NewProcessor(db *database.DB, opts Options) *Processor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		db:          db,
		users:       ledger.New(db),
		defaultUser: opts.DefaultUser,
		defaults:    opts.Defaults,
		now:         now,
	}
}

// Origin maps a pipeline message type to a classifier origin
func Origin(messageType string) (classifier.Origin, error) {
	switch messageType {
	case "text":
		return classifier.OriginText, nil
	case "image":
		return classifier.OriginPhoto, nil
	case "audio":
		return classifier.OriginAudio, nil
	default:
		return "", ErrUnsupportedType
	}
}

// Process classifies msg and, when an amount was found, stores it as an
// expense or income
func (p *Processor) Process(ctx context.Context, msg Message) (Outcome, error) {
	l := logger.FromContext(ctx)

	if msg.MessageType == "" || strings.TrimSpace(msg.Content) == "" || strings.TrimSpace(msg.PhoneNumber) == "" {
		return Outcome{}, ErrMissingFields
	}
	origin, err := Origin(msg.MessageType)
	if err != nil {
		return Outcome{}, err
	}

	catalog, err := identify.LoadCatalog(ctx, p.db, p.defaults)
	if err != nil {
		return Outcome{}, err
	}

	result := classifier.Classify(msg.Content, origin, catalog)
	outcome := Outcome{Result: result, Source: origin.Source()}

	l.Info("webhook_message_classified",
		"message_id", msg.MessageID,
		"source", outcome.Source,
		"category", result.Category,
		"amount", result.Amount.String(),
		"confidence", result.Confidence,
		"is_income", result.IsIncome,
	)

	if !result.Amount.IsPositive() {
		l.Warn("webhook_no_amount", "message_id", msg.MessageID)
		return outcome, nil
	}

	phone := ledger.NormalizePhone(msg.PhoneNumber)
	userName := p.defaultUser
	user, err := p.users.ResolveUser(ctx, msg.PhoneNumber)
	switch {
	case err == nil:
		userName = user.Nome
	case errors.Is(err, database.ErrNotFound):
		l.Info("webhook_unknown_phone", "phone", phone, "user", userName)
	default:
		return outcome, fmt.Errorf("resolve user: %w", err)
	}

	tx, err := p.db.CreateTransaction(ctx, models.Transacao{
		Quando:          ParseTimestamp(msg.Timestamp, p.now()),
		User:            userName,
		UserPhone:       phone,
		Estabelecimento: truncate(result.Description, maxEstabelecimentoRunes),
		Valor:           result.Amount,
		Detalhes:        result.Description,
		Tipo:            result.Tipo(),
		Categoria:       result.Category,
	})
	if err != nil {
		return outcome, err
	}
	outcome.Transaction = &tx

	l.Info("webhook_transaction_created", "id", tx.ID, "tipo", tx.Tipo, "user", tx.User)
	return outcome, nil
}

// ParseTimestamp reads an RFC 3339 string or a unix-millisecond number,
// returning fallback when v is absent or unreadable
func ParseTimestamp(v any, fallback time.Time) time.Time {
	switch ts := v.(type) {
	case string:
		if ts == "" {
			return fallback
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
	case float64:
		// 2^53 is where float64 stops holding every integer
		if ts > 0 && ts < 1<<53 {
			return time.UnixMilli(int64(ts))
		}
	}
	return fallback
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
