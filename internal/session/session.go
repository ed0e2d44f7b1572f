package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
)

// ChatSession is one WhatsApp conversation instance as held in the
// ephemeral cache. It is created by the message-ingestion path; the
// pipeline only reads it and rewrites it once, to mark it processed.
type ChatSession struct {
	Key      string    `json:"key,omitempty"`
	Messages []Message `json:"messages"`
	Metadata Metadata  `json:"metadata"`
}

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type Metadata struct {
	Phone        string     `json:"phone,omitempty"`
	Email        string     `json:"email,omitempty"`
	SessionID    string     `json:"session_id,omitempty"`
	Product      string     `json:"product,omitempty"`
	BusinessName string     `json:"business_name,omitempty"`
	Username     string     `json:"username,omitempty"`
	Processed    bool       `json:"processed,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// KeyParts are the components of a cache key: chat:<phone>::<product>::<suffix>
type KeyParts struct {
	Phone   string
	Product string
	Suffix  string
}

const keySeparator = "::"

func ParseKey(prefix, key string) (KeyParts, error) {
	if !strings.HasPrefix(key, prefix) {
		return KeyParts{}, errors.InvalidInput(fmt.Sprintf("key %q missing prefix %q", key, prefix))
	}
	rest := strings.TrimPrefix(key, prefix)
	parts := strings.Split(rest, keySeparator)
	if len(parts) != 3 {
		return KeyParts{}, errors.InvalidInput(fmt.Sprintf("key %q does not match <phone>::<product>::<suffix>", key))
	}
	return KeyParts{Phone: parts[0], Product: parts[1], Suffix: parts[2]}, nil
}

// Transcript renders the conversation as one line per message. This exact
// text is what the deduplication guard compares byte-for-byte, so the
// format must stay stable.
func (s *ChatSession) Transcript() string {
	var b strings.Builder
	for i, m := range s.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		if m.Timestamp.IsZero() {
			fmt.Fprintf(&b, "%s: %s", m.Role, m.Content)
		} else {
			fmt.Fprintf(&b, "%s [%s]: %s", m.Role, m.Timestamp.UTC().Format(time.RFC3339), m.Content)
		}
	}
	return b.String()
}
