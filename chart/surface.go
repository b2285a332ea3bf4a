package chart

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"linpredict/logging"
)

// MemorySurface keeps charts in memory.
type MemorySurface struct {
	mu     sync.Mutex
	charts map[Handle]Plot
}

func NewMemorySurface() *MemorySurface {
	return &MemorySurface{charts: make(map[Handle]Plot)}
}

func (m *MemorySurface) Create(plot Plot) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := Handle(uuid.NewString())
	m.charts[h] = plot
	return h, nil
}

func (m *MemorySurface) Destroy(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.charts, h)
}

// Live returns the number of charts currently alive.
func (m *MemorySurface) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.charts)
}

// Get returns a live chart.
func (m *MemorySurface) Get(h Handle) (Plot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.charts[h]
	return p, ok
}

// Publisher delivers a typed message to connected pages.
type Publisher interface {
	Publish(msgType string, data interface{}) error
}

const (
	MessageChartCreate  = "chart_create"
	MessageChartDestroy = "chart_destroy"
)

// CreateMessage announces a new chart on a canvas.
type CreateMessage struct {
	Canvas string `json:"canvas"`
	Handle Handle `json:"handle"`
	Plot   Plot   `json:"plot"`
}

// DestroyMessage removes a chart from a canvas.
type DestroyMessage struct {
	Canvas string `json:"canvas"`
	Handle Handle `json:"handle"`
}

// BroadcastSurface keeps charts in memory and publishes every create and
// destroy for one canvas.
type BroadcastSurface struct {
	*MemorySurface
	canvas    string
	publisher Publisher
}

func NewBroadcastSurface(canvas string, publisher Publisher) *BroadcastSurface {
	return &BroadcastSurface{
		MemorySurface: NewMemorySurface(),
		canvas:        canvas,
		publisher:     publisher,
	}
}

func (b *BroadcastSurface) Create(plot Plot) (Handle, error) {
	h, err := b.MemorySurface.Create(plot)
	if err != nil {
		return "", err
	}
	if err := b.publisher.Publish(MessageChartCreate, CreateMessage{Canvas: b.canvas, Handle: h, Plot: plot}); err != nil {
		b.MemorySurface.Destroy(h)
		return "", err
	}
	return h, nil
}

func (b *BroadcastSurface) Destroy(h Handle) {
	b.MemorySurface.Destroy(h)
	if err := b.publisher.Publish(MessageChartDestroy, DestroyMessage{Canvas: b.canvas, Handle: h}); err != nil {
		logging.Logger().Warn("failed to publish chart teardown",
			zap.String("canvas", b.canvas), zap.String("handle", string(h)), zap.Error(err))
	}
}

// Canvas returns the canvas name.
func (b *BroadcastSurface) Canvas() string {
	return b.canvas
}

// Current returns create messages for every live chart, for pages that
// connect after it was drawn.
func (b *BroadcastSurface) Current() []CreateMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := make([]CreateMessage, 0, len(b.charts))
	for h, p := range b.charts {
		msgs = append(msgs, CreateMessage{Canvas: b.canvas, Handle: h, Plot: p})
	}
	return msgs
}
