package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"deskchat/cli/internal/chatapi"
	"deskchat/cli/internal/kvstore"

	"github.com/google/uuid"
)

const Key = "chat-history"

type Message struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	IsUser   bool              `json:"isUser"`
	Thinking *chatapi.Thinking `json:"thinking,omitempty"`
}

func NewUserMessage(text string) Message {
	return Message{ID: uuid.NewString(), Text: text, IsUser: true}
}

func NewAssistantMessage(text string, thinking *chatapi.Thinking) Message {
	return Message{ID: uuid.NewString(), Text: text, Thinking: thinking}
}

// Log is the append-only conversation. Every mutation writes the whole
// list back to the store.
type Log struct {
	mu       sync.Mutex
	store    kvstore.Store
	key      string
	messages []Message
}

// Load reads the persisted conversation. A corrupt document is an error;
// a missing one is an empty log.
func Load(store kvstore.Store) (*Log, error) {
	if store == nil {
		return nil, errors.New("kv store is required")
	}
	l := &Log{store: store, key: Key, messages: []Message{}}
	raw, ok, err := store.Get(l.key)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	if !ok || raw == "" {
		return l, nil
	}
	if err := json.Unmarshal([]byte(raw), &l.messages); err != nil {
		return nil, fmt.Errorf("decode chat history: %w", err)
	}
	if l.messages == nil {
		l.messages = []Message{}
	}
	return l, nil
}

func (l *Log) Append(msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	next := make([]Message, 0, len(l.messages)+1)
	next = append(next, l.messages...)
	next = append(next, msg)
	if err := l.save(next); err != nil {
		return err
	}
	l.messages = next
	return nil
}

func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.save([]Message{}); err != nil {
		return err
	}
	l.messages = []Message{}
	return nil
}

// Messages returns a copy in conversation order.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

func (l *Log) save(messages []Message) error {
	b, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	if err := l.store.Put(l.key, string(b)); err != nil {
		return fmt.Errorf("save chat history: %w", err)
	}
	return nil
}
