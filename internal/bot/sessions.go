package bot

import (
	"context"
	"sync"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/dialog"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/registration"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/scancode"
)

// session is one chat's registration flow.
type session struct {
	chatID int64
	m      *registration.Machine

	// mu orders writes to the dialog store
	mu      sync.Mutex
	lastMID int
}

func (s *session) setLastMID(id int) {
	s.mu.Lock()
	s.lastMID = id
	s.mu.Unlock()
}

func (s *session) lastMessage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMID
}

type sessions struct {
	mu     sync.Mutex
	byChat map[int64]*session
}

func newSessions() *sessions {
	return &sessions{byChat: make(map[int64]*session)}
}

// session returns the chat's live session, restoring it from the dialog
// store after a restart. It returns nil when the chat has no flow.
func (b *Bot) session(ctx context.Context, chatID int64, userID string) *session {
	b.sessions.mu.Lock()
	defer b.sessions.mu.Unlock()
	if s, ok := b.sessions.byChat[chatID]; ok {
		return s
	}

	item, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.log.Error("load dialog failed", "chat_id", chatID, "err", err)
		return nil
	}
	state := registration.State(item.State)
	if !state.Valid() || state.Terminal() {
		return nil
	}
	m, err := registration.Restore(userID, b.calc, b.submitter, state, draftFromPayload(item.Payload))
	if err != nil {
		b.log.Warn("dropping unusable dialog", "chat_id", chatID, "state", item.State, "err", err)
		_ = b.states.Reset(ctx, chatID)
		return nil
	}
	s := &session{chatID: chatID, m: m}
	if mid, ok := dialog.GetInt(item.Payload, dialog.KeyLastMsgID); ok {
		s.lastMID = mid
	}
	b.attach(ctx, s)
	b.sessions.byChat[chatID] = s
	b.log.Debug("registration restored", "chat_id", chatID, "state", state)
	return s
}

// startSession replaces whatever flow the chat had with a fresh one.
func (b *Bot) startSession(ctx context.Context, chatID int64, userID string) *session {
	s := &session{chatID: chatID, m: registration.NewMachine(userID, b.calc, b.submitter)}
	b.attach(ctx, s)
	b.sessions.mu.Lock()
	b.sessions.byChat[chatID] = s
	b.sessions.mu.Unlock()
	b.persist(ctx, s)
	return s
}

func (b *Bot) attach(ctx context.Context, s *session) {
	s.m.BeforeSubmit(func(snap registration.Snapshot) {
		s.mu.Lock()
		defer s.mu.Unlock()
		b.storeLocked(ctx, s, snap)
	})
}

// persist writes the current snapshot; terminal states end the session.
// The snapshot is taken under s.mu so writes reach the store in the order
// the machine changed.
func (b *Bot) persist(ctx context.Context, s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.storeLocked(ctx, s, s.m.Snapshot())
}

// storeLocked must be called with s.mu held.
func (b *Bot) storeLocked(ctx context.Context, s *session, snap registration.Snapshot) {
	if snap.State.Terminal() {
		b.sessions.mu.Lock()
		if b.sessions.byChat[s.chatID] == s {
			delete(b.sessions.byChat, s.chatID)
		}
		b.sessions.mu.Unlock()
		if err := b.states.Reset(ctx, s.chatID); err != nil {
			b.log.Error("reset dialog failed", "chat_id", s.chatID, "err", err)
		}
		return
	}

	p := payloadFromDraft(snap.Draft)
	if s.lastMID != 0 {
		p[dialog.KeyLastMsgID] = float64(s.lastMID)
	}
	if err := b.states.Set(ctx, s.chatID, dialog.State(snap.State), p); err != nil {
		b.log.Error("save dialog failed", "chat_id", s.chatID, "state", snap.State, "err", err)
	}
}

func payloadFromDraft(d registration.Draft) dialog.Payload {
	p := dialog.Payload{}
	set := func(k, v string) {
		if v != "" {
			p[k] = v
		}
	}
	set(dialog.KeySite, d.Site.SiteID)
	set(dialog.KeyCategory, d.Category)
	set(dialog.KeyMaterial, d.Material)
	set(dialog.KeyQuantity, d.Quantity)
	set(dialog.KeyAttemptID, d.AttemptID)
	return p
}

func draftFromPayload(p dialog.Payload) registration.Draft {
	get := func(k string) string {
		v, _ := dialog.GetString(p, k)
		return v
	}
	return registration.Draft{
		Site:      scancode.Code{SiteID: get(dialog.KeySite)},
		Category:  get(dialog.KeyCategory),
		Material:  get(dialog.KeyMaterial),
		Quantity:  get(dialog.KeyQuantity),
		AttemptID: get(dialog.KeyAttemptID),
	}
}
