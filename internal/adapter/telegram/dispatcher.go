package telegram

import (
	"context"
	"sync"

	"github.com/go-telegram/bot/models"
)

type ctxUpdate struct {
	ctx context.Context
	upd *models.Update
}

// HandlerFunc обрабатывает один update.
type HandlerFunc func(ctx context.Context, c Client, upd *models.Update)

// Dispatcher раздаёт updates воркерам; updates одного чата идут в один воркер
// и обрабатываются по порядку.
type Dispatcher struct {
	client  Client
	handler HandlerFunc
	workers int
	chans   []chan ctxUpdate
	wg      sync.WaitGroup
	once    sync.Once
}

// NewDispatcher запускает workers воркеров (минимум один).
func NewDispatcher(c Client, workers int, h HandlerFunc) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{client: c, handler: h, workers: workers, chans: make([]chan ctxUpdate, workers)}
	for i := 0; i < workers; i++ {
		d.chans[i] = make(chan ctxUpdate, 100)
		d.wg.Add(1)
		go d.worker(d.chans[i])
	}
	return d
}

// Dispatch ставит update в очередь воркера по chat ID. Блокируется, пока очередь
// полна; отмена ctx отбрасывает update.
func (d *Dispatcher) Dispatch(ctx context.Context, upd *models.Update) {
	chatID := extractChatID(upd)
	idx := 0
	if chatID != 0 {
		idx = int(abs(chatID) % int64(d.workers))
	}
	select {
	case d.chans[idx] <- ctxUpdate{ctx: ctx, upd: upd}:
	case <-ctx.Done():
	}
}

// Close закрывает очереди и ждёт, пока воркеры доработают. Dispatch после
// Close вызывать нельзя.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		for _, ch := range d.chans {
			close(ch)
		}
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker(in <-chan ctxUpdate) {
	defer d.wg.Done()
	for item := range in {
		d.handler(item.ctx, d.client, item.upd)
	}
}

func extractChatID(u *models.Update) int64 {
	if u.Message != nil {
		return u.Message.Chat.ID
	}
	if u.CallbackQuery != nil && u.CallbackQuery.Message.Message != nil {
		return u.CallbackQuery.Message.Message.Chat.ID
	}
	return 0
}

func abs(i int64) int64 {
	if i < 0 {
		return -i
	}
	return i
}
