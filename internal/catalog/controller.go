// Package catalog keeps the console's ordered copy of the case list and
// reconciles local edits with the catalog server.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"case-console/internal/model"
	"case-console/internal/remote"
)

// Store is the server side of the catalog.
type Store interface {
	List(ctx context.Context) ([]model.CaseRecord, error)
	Create(ctx context.Context, fields remote.CaseFields, image remote.ImagePayload) (model.CaseRecord, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) error
}

type Direction int

const (
	Up Direction = iota
	Down
)

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Items         []model.CaseRecord
	Dirty         bool
	Creating      bool
	Committing    bool
	PendingDelete string
}

type Controller struct {
	store Store
	view  View

	// opMu serializes calls to the store so a load can never land on top of
	// a commit that finished after it started.
	opMu sync.Mutex

	mu            sync.Mutex
	items         []model.CaseRecord
	dirty         bool
	creating      bool
	committing    bool
	pendingDelete string
	// version increments on every change to the order of items.
	version uint64
}

func NewController(store Store, view View) *Controller {
	if view == nil {
		view = nopView{}
	}
	return &Controller{store: store, view: view}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Items:         append([]model.CaseRecord(nil), c.items...),
		Dirty:         c.dirty,
		Creating:      c.creating,
		Committing:    c.committing,
		PendingDelete: c.pendingDelete,
	}
}

func (c *Controller) Items() []model.CaseRecord {
	return c.Snapshot().Items
}

func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Load replaces the list with the server's current order.
func (c *Controller) Load(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Controller) loadLocked(ctx context.Context) error {
	records, err := c.store.List(ctx)
	if err != nil {
		c.notifyFailure("failed to load cases", err)
		return fmt.Errorf("load cases: %w", err)
	}

	c.mu.Lock()
	c.items = append([]model.CaseRecord(nil), records...)
	c.dirty = false
	c.version++
	c.mu.Unlock()

	return nil
}

// Create submits a new case. The list is reloaded afterwards because the
// server decides where the case lands.
func (c *Controller) Create(ctx context.Context, fields remote.CaseFields, image remote.ImagePayload) (model.CaseRecord, error) {
	if err := validateCreate(fields, image); err != nil {
		c.view.Notify(Notice{Level: LevelWarning, Title: "missing information", Detail: "an image and a title are required"})
		return model.CaseRecord{}, err
	}

	c.mu.Lock()
	if c.creating {
		c.mu.Unlock()
		return model.CaseRecord{}, ErrBusy
	}
	c.creating = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.creating = false
		c.mu.Unlock()
	}()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	created, err := c.store.Create(ctx, fields, image)
	if err != nil {
		c.notifyFailure("failed to create case", err)
		return model.CaseRecord{}, fmt.Errorf("create case: %w", err)
	}

	c.view.Notify(Notice{Level: LevelSuccess, Title: "case created", Detail: created.Title})
	c.view.ResetForm()

	if err := c.loadLocked(ctx); err != nil {
		c.warnStale("reload after create failed", err)
	}
	return created, nil
}

func validateCreate(fields remote.CaseFields, image remote.ImagePayload) error {
	if image.Empty() {
		return &ValidationError{Field: "image", Message: "an image is required"}
	}
	if strings.TrimSpace(fields.Title) == "" {
		return &ValidationError{Field: "title", Message: "a title is required"}
	}
	return nil
}

// Reorder moves the item at src so it ends up at dst. A negative dst means
// the drop had no target. A dst past the end is clamped to the last slot.
// It reports whether the order changed.
func (c *Controller) Reorder(src int, dst int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	if dst < 0 || src < 0 || src >= n {
		return false
	}
	if dst > n-1 {
		dst = n - 1
	}
	if dst == src {
		return false
	}

	c.items = splice(c.items, src, dst)
	c.dirty = true
	c.version++
	return true
}

// splice removes items[src] and reinserts it at dst in the shortened list.
func splice(items []model.CaseRecord, src int, dst int) []model.CaseRecord {
	moved := items[src]
	out := make([]model.CaseRecord, 0, len(items))
	out = append(out, items[:src]...)
	out = append(out, items[src+1:]...)
	out = append(out[:dst], append([]model.CaseRecord{moved}, out[dst:]...)...)
	return out
}

// Move shifts one item a single step. It does nothing at either end.
func (c *Controller) Move(index int, dir Direction) bool {
	switch dir {
	case Up:
		if index <= 0 {
			return false
		}
		return c.Reorder(index, index-1)
	case Down:
		c.mu.Lock()
		last := len(c.items) - 1
		c.mu.Unlock()
		if index >= last {
			return false
		}
		return c.Reorder(index, index+1)
	default:
		return false
	}
}

// CommitOrder sends the local order to the server. On failure the local
// order is kept as is so the user can retry. Only one commit runs at a time.
func (c *Controller) CommitOrder(ctx context.Context) error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	if c.committing {
		c.mu.Unlock()
		return ErrCommitInFlight
	}
	c.committing = true
	ids := make([]string, len(c.items))
	for i, item := range c.items {
		ids[i] = item.ID
	}
	sent := c.version
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.committing = false
		c.mu.Unlock()
	}()

	c.opMu.Lock()
	err := c.store.Reorder(ctx, ids)
	c.opMu.Unlock()

	if err != nil {
		c.notifyFailure("failed to save order", err)
		return fmt.Errorf("commit order: %w", err)
	}

	c.mu.Lock()
	// A reorder made while the request was in flight is still unsaved.
	if c.version == sent {
		c.dirty = false
	}
	c.mu.Unlock()

	c.view.Notify(Notice{Level: LevelSuccess, Title: "order saved"})
	return nil
}

// RequestDelete marks id for deletion. Nothing is sent until ConfirmDelete.
func (c *Controller) RequestDelete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range c.items {
		if item.ID == id {
			c.pendingDelete = id
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownCase, id)
}

func (c *Controller) CancelDelete() {
	c.mu.Lock()
	c.pendingDelete = ""
	c.mu.Unlock()
}

// ConfirmDelete deletes the pending case and reloads the list. The pending
// target is cleared whatever the outcome.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	id := c.pendingDelete
	c.mu.Unlock()
	if id == "" {
		return ErrNoPendingDelete
	}

	defer func() {
		c.mu.Lock()
		if c.pendingDelete == id {
			c.pendingDelete = ""
		}
		c.mu.Unlock()
	}()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.store.Delete(ctx, id); err != nil {
		c.notifyFailure("failed to delete case", err)
		return fmt.Errorf("delete case %s: %w", id, err)
	}

	c.view.Notify(Notice{Level: LevelSuccess, Title: "case deleted"})

	if err := c.loadLocked(ctx); err != nil {
		c.dropLocal(id)
		c.warnStale("reload after delete failed", err)
	}
	return nil
}

// dropLocal removes id from the local list. The relative order of the
// rest, and whether it is unsaved, stay as they were.
func (c *Controller) dropLocal(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.items[:0:0]
	for _, item := range c.items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) != len(c.items) {
		c.items = kept
		c.version++
	}
}

// warnStale tells the user the list may no longer match the server.
func (c *Controller) warnStale(msg string, err error) {
	slog.Warn(msg, "error", err)
	c.view.Notify(Notice{Level: LevelWarning, Title: "list may be out of date", Detail: "reload to see the current cases"})
}

func (c *Controller) notifyFailure(title string, err error) {
	notice := Notice{Level: LevelError, Title: title}

	var serverErr *remote.ServerError
	var networkErr *remote.NetworkError
	switch {
	case errors.As(err, &serverErr):
		notice.Title = title + ": server error"
		notice.Detail = serverErr.Message
		if notice.Detail == "" {
			notice.Detail = serverErr.Error()
		}
	case errors.As(err, &networkErr):
		notice.Title = title + ": network error"
	default:
		notice.Detail = err.Error()
	}

	c.view.Notify(notice)
}
