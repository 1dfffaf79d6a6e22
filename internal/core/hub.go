package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// Options configures hub behaviour. The zero value reproduces the relay's
// default policy: trusted sender names, silent displacement, silent misses.
type Options struct {
	Logger   *zerolog.Logger
	Metrics  *Metrics
	Presence store.PresenceStore // optional audit log

	// StrictSender requires the declared sender to match the connection's record.
	StrictSender bool
	// NotifyDisplaced sends EventDisplaced to a connection whose username was taken over.
	NotifyDisplaced bool
	// NackUndeliverable reports undeliverable private messages back to the sender.
	NackUndeliverable bool

	Now func() time.Time
}

// Hub routes inbound commands to outbound events. It owns the presence
// registry and the set of attached connections.
type Hub struct {
	// mu makes each inbound event one atomic step: registry effect plus
	// enqueue to every recipient. Enqueue never blocks.
	mu       sync.Mutex
	registry *Registry
	conns    *connSet

	// sessions counts attached connections whose Disconnect has not finished.
	sessions atomic.Int64

	opts Options
	log  *zerolog.Logger
}

// NewHub creates a new chat hub instance.
func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hub{
		registry: NewRegistry(),
		conns:    newConnSet(),
		opts:     opts,
		log:      logger,
	}
}

// Attach registers an open connection. It receives broadcasts from now on,
// whether or not it joins.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	added := h.conns.add(c)
	if added {
		h.sessions.Add(1)
	}
	n := h.conns.len()
	h.mu.Unlock()

	if added {
		h.opts.Metrics.setConnections(n)
		h.log.Debug().Str("client_id", c.ID).Int("connections", n).Msg("client attached")
	}
}

// Disconnect detaches the connection and, if it had joined, removes its
// record and tells everyone else. Repeated calls are no-ops.
func (h *Hub) Disconnect(ctx context.Context, id string) {
	h.mu.Lock()
	detached := h.conns.remove(id)
	conns := h.conns.len()
	rec, existed := h.registry.Remove(id)
	var sent, dropped int
	if existed {
		sent, dropped = h.conns.broadcast(&Event{Kind: EventUserLeft, User: rec})
	}
	rosterLen := h.registry.Len()
	h.mu.Unlock()

	if detached {
		defer h.sessions.Add(-1)
	}
	h.opts.Metrics.setConnections(conns)
	if !existed {
		h.log.Debug().Str("client_id", id).Msg("client detached before join")
		return
	}

	h.opts.Metrics.setRoster(rosterLen)
	h.opts.Metrics.delivery(EventUserLeft, sent, dropped)
	h.recordPresence(ctx, store.PresenceLeave, rec)
	h.log.Info().Str("client_id", id).Str("user", rec.Username).Msg("user left")
}

// Handle executes one inbound command on behalf of c. The returned error is a
// local diagnostic for the caller; it never affects other connections.
func (h *Hub) Handle(ctx context.Context, c *Client, cmd *Command) error {
	h.opts.Metrics.command(cmd.Kind)

	switch cmd.Kind {
	case CommandJoin:
		return h.join(ctx, c, cmd.Sender)
	case CommandBroadcast:
		return h.broadcast(c, cmd)
	case CommandPrivateSend:
		return h.privateSend(c, cmd)
	default:
		return h.reject(c, coreError(ErrCodeBadRequest, ErrBadRequest), true)
	}
}

// Wait blocks until every attached connection has been disconnected, or ctx
// is done. Presence writes for those disconnects have finished when it returns nil.
func (h *Hub) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for h.sessions.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Roster returns the current roster in join order.
func (h *Hub) Roster() []Identity {
	return h.registry.Snapshot()
}

// Connections returns the number of attached connections.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns.len()
}

func (h *Hub) join(ctx context.Context, c *Client, declared Identity) error {
	if declared.Username == "" {
		return h.reject(c, coreError(ErrCodeBadRequest, ErrBadRequest), true)
	}
	rec := Identity{Handle: c.ID, Username: declared.Username, PublicKey: declared.PublicKey}

	h.mu.Lock()
	if _, ok := h.conns.get(c.ID); !ok {
		h.mu.Unlock()
		return h.reject(c, coreError(ErrCodeBadRequest, ErrUnknownConnection), false)
	}
	if _, joined := h.registry.Get(c.ID); joined {
		h.mu.Unlock()
		return h.reject(c, coreError(ErrCodeAlreadyJoined, ErrAlreadyJoined), true)
	}

	evicted, displaced := h.registry.Upsert(rec)
	roster := h.registry.Snapshot()

	rosterSent := 0
	if c.deliver(&Event{Kind: EventRoster, Roster: roster}) {
		rosterSent = 1
	}
	sent, dropped := h.conns.broadcast(&Event{Kind: EventUserJoined, User: rec})
	if displaced && h.opts.NotifyDisplaced {
		if old, ok := h.conns.get(evicted.Handle); ok {
			old.deliver(&Event{Kind: EventDisplaced, User: evicted})
		}
	}
	h.mu.Unlock()

	h.opts.Metrics.setRoster(len(roster))
	h.opts.Metrics.delivery(EventRoster, rosterSent, 1-rosterSent)
	h.opts.Metrics.delivery(EventUserJoined, sent, dropped)

	if displaced {
		h.opts.Metrics.displacement()
		h.recordPresence(ctx, store.PresenceDisplaced, evicted)
		h.log.Info().
			Str("user", rec.Username).
			Str("client_id", c.ID).
			Str("displaced_client_id", evicted.Handle).
			Msg("username taken over by newer join")
	}
	h.recordPresence(ctx, store.PresenceJoin, rec)
	h.log.Info().Str("client_id", c.ID).Str("user", rec.Username).Int("roster", len(roster)).Msg("user joined")
	return nil
}

func (h *Hub) broadcast(c *Client, cmd *Command) error {
	h.mu.Lock()
	sender, err := h.resolveSender(c, cmd.Sender)
	if err != nil {
		h.mu.Unlock()
		return h.reject(c, err, true)
	}
	msg := Message{From: sender, Text: cmd.Text, CreatedAt: h.opts.Now()}
	sent, dropped := h.conns.broadcast(&Event{Kind: EventMessage, Message: msg})
	h.mu.Unlock()

	h.opts.Metrics.delivery(EventMessage, sent, dropped)
	h.log.Debug().Str("client_id", c.ID).Str("user", sender.Username).Int("recipients", sent).Msg("broadcast relayed")
	return nil
}

func (h *Hub) privateSend(c *Client, cmd *Command) error {
	envelope, err := ParseEnvelope(cmd.Payload)
	if err != nil {
		return h.reject(c, coreError(ErrCodeMalformedEnvelope, err), h.opts.NackUndeliverable)
	}
	if cmd.To == "" {
		return h.reject(c, coreError(ErrCodeBadRequest, ErrBadRequest), true)
	}

	h.mu.Lock()
	sender, cerr := h.resolveSender(c, cmd.Sender)
	if cerr != nil {
		h.mu.Unlock()
		return h.reject(c, cerr, true)
	}

	var target *Client
	recipient, found := h.registry.FindByUsername(cmd.To)
	if found {
		target, found = h.conns.get(recipient.Handle)
	}
	if !found {
		h.mu.Unlock()
		return h.reject(c, coreError(ErrCodeRecipientNotFound, ErrRecipientNotFound), h.opts.NackUndeliverable)
	}

	delivered := target.deliver(&Event{
		Kind: EventPrivateMessage,
		Private: PrivateMessage{
			From:      sender,
			To:        recipient.Username,
			Envelope:  envelope,
			CreatedAt: h.opts.Now(),
		},
	})
	h.mu.Unlock()

	if delivered {
		h.opts.Metrics.delivery(EventPrivateMessage, 1, 0)
	} else {
		h.opts.Metrics.delivery(EventPrivateMessage, 0, 1)
	}
	h.log.Debug().Str("client_id", c.ID).Str("user", sender.Username).Str("to", recipient.Username).Msg("private message routed")
	return nil
}

// resolveSender decides which identity a message is attributed to.
// Must be called with h.mu held.
func (h *Hub) resolveSender(c *Client, declared Identity) (Identity, *CoreError) {
	rec, joined := h.registry.Get(c.ID)

	if h.opts.StrictSender {
		if !joined {
			return Identity{}, coreError(ErrCodeNotJoined, ErrNotJoined)
		}
		if declared.Username != "" && declared.Username != rec.Username {
			return Identity{}, coreError(ErrCodeSenderMismatch, ErrSenderMismatch)
		}
		return rec, nil
	}

	if declared.Username == "" {
		if !joined {
			return Identity{}, coreError(ErrCodeNotJoined, ErrNotJoined)
		}
		return rec, nil
	}

	sender := Identity{Handle: c.ID, Username: declared.Username, PublicKey: declared.PublicKey}
	if sender.PublicKey == "" && joined && rec.Username == sender.Username {
		sender.PublicKey = rec.PublicKey
	}
	return sender, nil
}

func (h *Hub) reject(c *Client, cerr *CoreError, notify bool) error {
	h.opts.Metrics.reject(cerr.Code)
	if notify {
		c.deliver(&Event{Kind: EventError, Error: cerr})
	}
	h.log.Debug().Str("client_id", c.ID).Str("code", cerr.Code).Msg("command rejected")
	return cerr
}

func (h *Hub) recordPresence(ctx context.Context, action store.PresenceAction, rec Identity) {
	if h.opts.Presence == nil {
		return
	}
	event := &store.PresenceEvent{
		ConnectionID: rec.Handle,
		Username:     rec.Username,
		HasPublicKey: rec.HasPublicKey(),
		Action:       action,
		CreatedAt:    h.opts.Now(),
	}
	if err := h.opts.Presence.RecordPresence(ctx, event); err != nil {
		h.log.Warn().Err(err).Str("user", rec.Username).Str("action", string(action)).Msg("failed to record presence")
	}
}
