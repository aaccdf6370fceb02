// Package messagingtest отправитель, запоминающий сообщения.
package messagingtest

import (
	"context"
	"fmt"
	"sync"

	"dailydev/internal/messaging"
)

// Message одно отправленное сообщение.
type Message struct {
	Handle string
	Text   string
}

// Recorder реализует messaging.Sender. Если Err задан, отправка падает
// для всех адресов; FailFor роняет только перечисленные адреса.
type Recorder struct {
	Err     error
	FailFor map[string]error

	mu   sync.Mutex
	sent []Message
}

var _ messaging.Sender = (*Recorder)(nil)

func (r *Recorder) SendMessage(_ context.Context, handle, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	if err := r.FailFor[handle]; err != nil {
		return "", err
	}
	r.sent = append(r.sent, Message{Handle: handle, Text: text})
	return fmt.Sprintf("MSG%03d", len(r.sent)), nil
}

// Sent копия отправленных сообщений.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// To сообщения на адрес handle.
func (r *Recorder) To(handle string) []Message {
	var out []Message
	for _, m := range r.Sent() {
		if m.Handle == handle {
			out = append(out, m)
		}
	}
	return out
}
