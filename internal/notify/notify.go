package notify

import (
	"sync"
	"time"
)

// Op names a durable operation that can fail visibly.
type Op string

const (
	OpAddSection           Op = "addSection"
	OpAddItem              Op = "addItem"
	OpDeleteImages         Op = "deleteImages"
	OpDeleteSection        Op = "deleteSection"
	OpDeleteSectionItems   Op = "deleteSectionItems"
	OpImportImage          Op = "importImage"
	OpLoadImages           Op = "loadImages"
	OpReorderItems         Op = "reorderItems"
	OpRenameProject        Op = "renameProject"
	OpUpdateItemText       Op = "updateItemText"
	OpUpdateItemCompletion Op = "updateItemCompletion"

	// Not in the message catalog; these fall back to GenericMessage.
	OpRenameSection       Op = "renameSection"
	OpSetProjectCompleted Op = "setProjectCompleted"
)

const GenericMessage = "Something went wrong. Please try again."

var messages = map[Op]string{
	OpAddSection:           "Couldn't add the section.",
	OpAddItem:              "Couldn't add the item.",
	OpDeleteImages:         "Couldn't delete the images.",
	OpDeleteSection:        "Couldn't delete the section.",
	OpDeleteSectionItems:   "Couldn't delete the items.",
	OpImportImage:          "Couldn't import the image.",
	OpLoadImages:           "Couldn't load the project's images.",
	OpReorderItems:         "Couldn't save the new item order.",
	OpRenameProject:        "Couldn't rename the project.",
	OpUpdateItemText:       "Couldn't update the item.",
	OpUpdateItemCompletion: "Couldn't update the item's completion.",
}

// Message returns the user-facing text for a failed op.
func Message(op Op) string {
	if m, ok := messages[op]; ok {
		return m
	}
	return GenericMessage
}

// Notification is one shown failure.
type Notification struct {
	ID      uint64    `json:"id"`
	Op      Op        `json:"op"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
	At      time.Time `json:"at"`
}

const DefaultDelay = 3 * time.Second

// Center is the single transient notification surface. At most one
// notification is current; showing another replaces it. Safe for
// concurrent use.
type Center struct {
	delay time.Duration
	now   func() time.Time

	mu       sync.Mutex
	seq      uint64
	current  *Notification
	timer    *time.Timer
	history  []Notification
	changes  chan struct{}
}

type Option func(*Center)

// WithDelay sets the auto-dismiss delay. Zero or negative disables it.
func WithDelay(d time.Duration) Option { return func(c *Center) { c.delay = d } }

func WithClock(now func() time.Time) Option { return func(c *Center) { c.now = now } }

func NewCenter(opts ...Option) *Center {
	c := &Center{delay: DefaultDelay, now: time.Now, changes: make(chan struct{}, 1)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Show replaces the current notification with one for op and schedules its
// dismissal.
func (c *Center) Show(op Op, err error) Notification {
	c.mu.Lock()
	c.seq++
	n := Notification{ID: c.seq, Op: op, Message: Message(op), Err: err, At: c.now()}
	c.current = &n
	c.history = append(c.history, n)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.delay > 0 {
		id := n.ID
		c.timer = time.AfterFunc(c.delay, func() { c.expire(id) })
	}
	c.mu.Unlock()
	c.signal()
	return n
}

// Current returns the notification on screen, if any.
func (c *Center) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Notification{}, false
	}
	return *c.current, true
}

// Dismiss clears the current notification.
func (c *Center) Dismiss() {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	c.current = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.signal()
}

// History returns every notification shown so far, oldest first.
func (c *Center) History() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.history...)
}

func (c *Center) expire(id uint64) {
	c.mu.Lock()
	// A newer notification owns the surface now.
	if c.current == nil || c.current.ID != id {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.timer = nil
	c.mu.Unlock()
	c.signal()
}

// Changes fires after the current notification is shown, dismissed or
// expires. Signals coalesce: a reader that falls behind sees one pending
// signal, then reads Current.
func (c *Center) Changes() <-chan struct{} { return c.changes }

func (c *Center) signal() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}
