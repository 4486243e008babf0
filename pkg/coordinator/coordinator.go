// Package coordinator drives the per-conversation state machine: for every
// customer message it decides whether the bot answers immediately, answers
// after an inactivity deadline, or stays silent because a human agent is
// handling the conversation. It also absorbs agent signals (messages,
// typing, status toggles) that cancel or defer pending bot work, and feeds
// the learning store by pairing agent answers with recent customer
// questions.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/lingodesk/lingodesk/pkg/logger"
	"github.com/lingodesk/lingodesk/pkg/store"
	"github.com/lingodesk/lingodesk/pkg/telemetry"
	"github.com/lingodesk/lingodesk/pkg/types/chat"
)

var tracer = telemetry.Tracer("lingodesk.coordinator")

// retrieveK is how many candidates each knowledge query considers.
const retrieveK = 3

// defaultLearningWindow bounds how old a customer question may be and still
// be paired with an agent answer.
const defaultLearningWindow = 180 * time.Second

// Store is the persistence surface the coordinator needs.
type Store interface {
	LogMessage(ctx context.Context, role, lang, text, cid string) error
	UpsertQA(ctx context.Context, qFR, qZH, aZH, source string) (int64, error)
	RetrieveBest(ctx context.Context, queryFR, queryZH string, k int) (*store.Match, error)
}

// Translator converts text between languages, best effort: it returns the
// input unchanged rather than failing.
type Translator interface {
	Translate(ctx context.Context, text, target, source string) string
}

// Responder returns a canned Chinese answer for a Chinese question, or "".
type Responder interface {
	Reply(textZH string) string
}

// Broker fans events out to conversation rooms.
type Broker interface {
	Publish(ctx context.Context, room, event string, data any)
	RoomLen(room string) int
}

// Config carries the coordinator timings and language defaults.
type Config struct {
	// DefaultClientLang is the language customers read, used both as the
	// bot-reply translation target and the agent-message default.
	DefaultClientLang string
	// BotInactivity is how long the bot waits for the agent before taking
	// over a customer message.
	BotInactivity time.Duration
	// BotSuppress is how long a single typing signal holds the takeover.
	BotSuppress time.Duration
	// LearningWindow bounds question/answer pairing age. Zero means the
	// default of three minutes.
	LearningWindow time.Duration
}

// conversation is the mutable state for one cid. All fields are guarded by
// mu; timestamps carry monotonic readings so comparisons are immune to wall
// clock adjustments.
type conversation struct {
	mu                sync.Mutex
	agentOnline       bool
	suppressUntil     time.Time
	lastAgentActivity time.Time
	lastClientToken   time.Time
	lastQA            *clientQA

	// cancelPending aborts the bot takeover scheduled for pendingToken.
	cancelPending context.CancelFunc
	pendingToken  time.Time
}

// clientQA remembers the most recent customer question for learning.
type clientQA struct {
	original string
	chinese  string
	token    time.Time
}

// Coordinator owns all per-conversation state.
type Coordinator struct {
	cfg        Config
	store      Store
	translator Translator
	rules      Responder
	broker     Broker

	mu            sync.Mutex
	conversations map[string]*conversation
}

// New wires a Coordinator. A zero LearningWindow falls back to the default.
func New(cfg Config, st Store, tr Translator, rules Responder, br Broker) *Coordinator {
	if cfg.LearningWindow <= 0 {
		cfg.LearningWindow = defaultLearningWindow
	}
	return &Coordinator{
		cfg:           cfg,
		store:         st,
		translator:    tr,
		rules:         rules,
		broker:        br,
		conversations: make(map[string]*conversation),
	}
}

// OnConnect joins a participant to the conversation. Agent connections count
// as activity, which cancels any pending takeover. Everyone learns the
// current agent status.
func (c *Coordinator) OnConnect(ctx context.Context, cid, role string) {
	if role == chat.RoleAgent {
		st := c.state(cid)
		st.mu.Lock()
		st.lastAgentActivity = time.Now()
		cancelPendingLocked(st)
		st.mu.Unlock()
	}
	c.broadcastAgentStatus(ctx, cid)
}

// OnDisconnect reaps conversation state once the room is empty and no bot
// work is pending.
func (c *Coordinator) OnDisconnect(ctx context.Context, cid, role string) {
	c.maybeReap(cid)
	logger.G(ctx).WithFields(map[string]any{"cid": cid, "role": role}).Debug("participant disconnected")
}

// OnAgentTyping opens a suppression window and counts as agent activity,
// cancelling any takeover pending for an earlier customer message.
func (c *Coordinator) OnAgentTyping(ctx context.Context, cid string) {
	st := c.state(cid)
	st.mu.Lock()
	now := time.Now()
	st.suppressUntil = now.Add(c.cfg.BotSuppress)
	st.lastAgentActivity = now
	cancelPendingLocked(st)
	st.mu.Unlock()
}

// OnAgentSetStatus flips the manual online flag and tells the conversation.
// Offline means the bot answers customer messages immediately.
func (c *Coordinator) OnAgentSetStatus(ctx context.Context, cid string, online bool) {
	st := c.state(cid)
	st.mu.Lock()
	st.agentOnline = online
	st.mu.Unlock()

	logger.G(ctx).WithFields(map[string]any{"cid": cid, "online": online}).Info("agent status changed")
	c.broadcastAgentStatus(ctx, cid)
}

// AgentOnline reports the manual online flag for cid.
func (c *Coordinator) AgentOnline(cid string) bool {
	st := c.state(cid)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.agentOnline
}

// Close cancels every pending bot task, typically during shutdown.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.conversations {
		st.mu.Lock()
		cancelPendingLocked(st)
		st.mu.Unlock()
	}
}

func (c *Coordinator) broadcastAgentStatus(ctx context.Context, cid string) {
	c.broker.Publish(ctx, chat.Room(cid), chat.EventAgentStatus, chat.AgentStatus{
		CID:    cid,
		Online: c.AgentOnline(cid),
	})
}

// state returns the conversation record for cid, creating it with the agent
// assumed online.
func (c *Coordinator) state(cid string) *conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.conversations[cid]
	if !ok {
		st = &conversation{agentOnline: true}
		c.conversations[cid] = st
	}
	return st
}

// maybeReap deletes conversation state once nobody is connected and no bot
// task is pending.
func (c *Coordinator) maybeReap(cid string) {
	if c.broker.RoomLen(chat.Room(cid)) > 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.conversations[cid]
	if !ok {
		return
	}
	st.mu.Lock()
	idle := st.cancelPending == nil
	st.mu.Unlock()
	if idle {
		delete(c.conversations, cid)
	}
}

func cancelPendingLocked(st *conversation) {
	if st.cancelPending != nil {
		st.cancelPending()
		st.cancelPending = nil
		st.pendingToken = time.Time{}
	}
}

func (c *Coordinator) logMessage(ctx context.Context, role, lang, text, cid string) {
	if err := c.store.LogMessage(ctx, role, lang, text, cid); err != nil {
		logger.G(ctx).WithError(err).WithFields(map[string]any{"cid": cid, "role": role}).Warn("message log failed")
	}
}
