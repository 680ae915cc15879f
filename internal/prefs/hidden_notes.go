// Package prefs owns the hidden-notes preference. The service profile is
// authoritative; a local copy is only written while no sync with the service
// has succeeded, and is pushed up and dropped by the first sync that does.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/thienng-it/note-hub-sub001/internal/session"
	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
	"github.com/thienng-it/note-hub-sub001/pkg/slogx"
)

// HiddenNotesKey is the local cache key.
const HiddenNotesKey = "hidden_notes"

// Cache is local key/value storage.
type Cache interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

// Remote updates the preference on the service.
type Remote interface {
	UpdateHiddenNotes(ctx context.Context, ids []int64) (*notehubsdk.User, error)
}

// Sessions is the session store as seen by the preference.
type Sessions interface {
	Current() *session.Session
	UpdateUser(ctx context.Context, user *notehubsdk.User) error
}

// HiddenNotes is the set of note IDs the user hid.
type HiddenNotes struct {
	sessions Sessions
	remote   Remote
	cache    Cache
	logger   *slog.Logger

	mu         sync.Mutex
	syncedUser int64
}

// NewHiddenNotes returns the preference. logger may be nil.
func NewHiddenNotes(sessions Sessions, remote Remote, cache Cache, logger *slog.Logger) *HiddenNotes {
	if logger == nil {
		logger = slogx.Discard()
	}
	return &HiddenNotes{sessions: sessions, remote: remote, cache: cache, logger: logger}
}

// Synced reports whether a sync with the service has succeeded for the
// current user.
func (h *HiddenNotes) Synced() bool {
	user := h.user()
	if user == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.syncedUser == user.ID
}

// IDs returns the hidden note IDs in ascending order.
func (h *HiddenNotes) IDs(ctx context.Context) ([]int64, error) {
	if user := h.user(); user != nil && user.HiddenNotes != nil {
		return normalize(user.HiddenNotes), nil
	}
	return h.local(ctx)
}

// IsHidden reports whether id is hidden.
func (h *HiddenNotes) IsHidden(ctx context.Context, id int64) (bool, error) {
	ids, err := h.IDs(ctx)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(ids, id)
	return found, nil
}

// Hide adds id to the set.
func (h *HiddenNotes) Hide(ctx context.Context, id int64) error {
	ids, err := h.IDs(ctx)
	if err != nil {
		return err
	}
	return h.Set(ctx, append(ids, id))
}

// Unhide removes id from the set.
func (h *HiddenNotes) Unhide(ctx context.Context, id int64) error {
	ids, err := h.IDs(ctx)
	if err != nil {
		return err
	}
	return h.Set(ctx, slices.DeleteFunc(ids, func(v int64) bool { return v == id }))
}

// Set replaces the set. Logged in, the service is updated first. If that
// fails before any sync has succeeded the value is kept locally and nil is
// returned; once synced the error is returned and nothing changes.
func (h *HiddenNotes) Set(ctx context.Context, ids []int64) error {
	ids = normalize(ids)

	user := h.user()
	if user == nil {
		return h.storeLocal(ctx, ids)
	}

	err := h.push(ctx, ids)
	if err == nil {
		return nil
	}
	if h.Synced() {
		return err
	}

	h.logger.Warn("hidden notes kept locally until the next sync", "error", err)
	return h.storeLocal(ctx, ids)
}

// Sync reconciles with the service. When the service has never stored the
// preference and a local copy exists, the local copy is uploaded.
func (h *HiddenNotes) Sync(ctx context.Context) error {
	user := h.user()
	if user == nil {
		return session.ErrNoSession
	}

	local, hasLocal, err := h.readLocal(ctx)
	if err != nil {
		return err
	}

	if user.HiddenNotes == nil && hasLocal {
		return h.push(ctx, local)
	}

	h.markSynced(user.ID)
	if hasLocal {
		return h.cache.DeletePreference(ctx, HiddenNotesKey)
	}
	return nil
}

// push writes ids to the service and the session, then drops the local copy.
func (h *HiddenNotes) push(ctx context.Context, ids []int64) error {
	updated, err := h.remote.UpdateHiddenNotes(ctx, ids)
	if err != nil {
		return err
	}
	if err := h.sessions.UpdateUser(ctx, updated); err != nil {
		return err
	}
	h.markSynced(updated.ID)

	if err := h.cache.DeletePreference(ctx, HiddenNotesKey); err != nil {
		h.logger.Warn("drop local hidden notes failed", "error", err)
	}
	return nil
}

func (h *HiddenNotes) markSynced(userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.syncedUser = userID
}

func (h *HiddenNotes) user() *notehubsdk.User {
	cur := h.sessions.Current()
	if cur == nil {
		return nil
	}
	return cur.User
}

func (h *HiddenNotes) local(ctx context.Context) ([]int64, error) {
	ids, _, err := h.readLocal(ctx)
	return ids, err
}

func (h *HiddenNotes) readLocal(ctx context.Context) ([]int64, bool, error) {
	raw, ok, err := h.cache.GetPreference(ctx, HiddenNotesKey)
	if err != nil || !ok {
		return nil, false, err
	}

	var ids notehubsdk.HiddenNotes
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, false, fmt.Errorf("decode local hidden notes: %w", err)
	}
	return normalize(ids), true, nil
}

func (h *HiddenNotes) storeLocal(ctx context.Context, ids []int64) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return h.cache.SetPreference(ctx, HiddenNotesKey, string(raw))
}

// normalize returns a sorted copy without duplicates. It never returns nil.
func normalize(ids []int64) []int64 {
	out := slices.Clone(ids)
	if out == nil {
		out = []int64{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
