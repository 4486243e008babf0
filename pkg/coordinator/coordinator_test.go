package coordinator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingodesk/lingodesk/pkg/rules"
	"github.com/lingodesk/lingodesk/pkg/store"
	"github.com/lingodesk/lingodesk/pkg/types/chat"
)

type publishedEvent struct {
	room  string
	event string
	data  any
}

// fakeBroker records everything published so tests can assert rooms,
// ordering and payload contents.
type fakeBroker struct {
	mu       sync.Mutex
	events   []publishedEvent
	occupied map[string]int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{occupied: make(map[string]int)}
}

func (b *fakeBroker) Publish(_ context.Context, room, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{room: room, event: event, data: data})
}

func (b *fakeBroker) RoomLen(room string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.occupied[room]
}

func (b *fakeBroker) messages(room string) []chat.NewMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []chat.NewMessage
	for _, ev := range b.events {
		if ev.room != room || ev.event != chat.EventNewMessage {
			continue
		}
		if m, ok := ev.data.(chat.NewMessage); ok {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBroker) botReplies(room string) []chat.NewMessage {
	var out []chat.NewMessage
	for _, m := range b.messages(room) {
		if m.BotReply {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBroker) statuses(room string) []chat.AgentStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []chat.AgentStatus
	for _, ev := range b.events {
		if ev.room != room || ev.event != chat.EventAgentStatus {
			continue
		}
		if s, ok := ev.data.(chat.AgentStatus); ok {
			out = append(out, s)
		}
	}
	return out
}

// stubTranslator maps "text|target" pairs to fixed outputs and otherwise
// returns the input, mimicking the real translator's never-fail contract.
type stubTranslator struct {
	mu    sync.Mutex
	table map[string]string
	calls []string
}

func newStubTranslator() *stubTranslator {
	return &stubTranslator{table: map[string]string{
		"Bonjour|zh":           "你好",
		"你好|fr":                "Bonjour",
		"Comment retirer ?|zh": "怎么提现",
		"请在提现界面提交申请|fr":        "Soumettez la demande sur la page de retrait",
		"您好，提现提交后一般 5-30 分钟到账，请确保账户已完成实名与绑定。|fr": "Le retrait arrive sous 5 a 30 minutes.",
	}}
}

func (s *stubTranslator) Translate(_ context.Context, text, target, _ string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := text + "|" + target
	s.calls = append(s.calls, key)
	if out, ok := s.table[key]; ok {
		return out
	}
	return text
}

func (s *stubTranslator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type loggedMessage struct {
	role string
	lang string
	text string
	cid  string
}

type upsertCall struct {
	qFR    string
	qZH    string
	aZH    string
	source string
}

// recordingStore wraps the real store so tests can observe log and learn
// calls while retrieval still runs against actual SQLite.
type recordingStore struct {
	*store.Store
	mu      sync.Mutex
	logs    []loggedMessage
	upserts []upsertCall
}

func (r *recordingStore) LogMessage(ctx context.Context, role, lang, text, cid string) error {
	r.mu.Lock()
	r.logs = append(r.logs, loggedMessage{role: role, lang: lang, text: text, cid: cid})
	r.mu.Unlock()
	return r.Store.LogMessage(ctx, role, lang, text, cid)
}

func (r *recordingStore) UpsertQA(ctx context.Context, qFR, qZH, aZH, source string) (int64, error) {
	r.mu.Lock()
	r.upserts = append(r.upserts, upsertCall{qFR: qFR, qZH: qZH, aZH: aZH, source: source})
	r.mu.Unlock()
	return r.Store.UpsertQA(ctx, qFR, qZH, aZH, source)
}

func (r *recordingStore) loggedRoles(cid string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.logs {
		if l.cid == cid {
			out = append(out, l.role+"/"+l.lang)
		}
	}
	return out
}

func (r *recordingStore) upsertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.upserts)
}

func newTestCoordinator(t *testing.T, cfg Config) (*Coordinator, *fakeBroker, *recordingStore, *stubTranslator) {
	t.Helper()

	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	if cfg.DefaultClientLang == "" {
		cfg.DefaultClientLang = "fr"
	}
	if cfg.BotInactivity == 0 {
		cfg.BotInactivity = 10 * time.Second
	}
	if cfg.BotSuppress == 0 {
		cfg.BotSuppress = 100 * time.Millisecond
	}

	rec := &recordingStore{Store: s}
	br := newFakeBroker()
	tr := newStubTranslator()
	c := New(cfg, rec, tr, rules.NewResponder(), br)
	t.Cleanup(c.Close)
	return c, br, rec, tr
}

func TestClientMessageBroadcastsToBothRooms(t *testing.T) {
	c, br, rec, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "  Bonjour  "})

	for _, room := range []string{chat.AgentsRoom("c1"), chat.ClientsRoom("c1")} {
		msgs := br.messages(room)
		require.Len(t, msgs, 1, "room %s", room)
		m := msgs[0]
		assert.Equal(t, "c1", m.CID)
		assert.Equal(t, chat.RoleClient, m.From)
		assert.Equal(t, "Bonjour", m.Original)
		assert.Equal(t, "你好", m.ClientZH)
		assert.Empty(t, m.SuggestZH)
		assert.False(t, m.BotReply)
		assert.NotEmpty(t, m.Timestamp)
	}

	assert.Equal(t, []string{"client/fr", "client/zh"}, rec.loggedRoles("c1"))
}

func TestClientMessageAttachesSuggestionWhenAgentOnline(t *testing.T) {
	c, br, rec, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()

	_, err := rec.UpsertQA(ctx, "Comment retirer ?", "怎么提现", "请在提现界面提交申请", "manual")
	require.NoError(t, err)

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Comment retirer ?"})

	for _, room := range []string{chat.AgentsRoom("c1"), chat.ClientsRoom("c1")} {
		msgs := br.messages(room)
		require.Len(t, msgs, 1, "room %s", room)
		assert.Equal(t, "请在提现界面提交申请", msgs[0].SuggestZH)
	}
	assert.Empty(t, br.botReplies(chat.ClientsRoom("c1")), "agent is online, bot must stay quiet")
}

func TestOfflineBotRepliesImmediately(t *testing.T) {
	c, br, rec, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()

	c.OnAgentSetStatus(ctx, "c1", false)

	statuses := br.statuses(chat.Room("c1"))
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Online)
	assert.False(t, c.AgentOnline("c1"))

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Bonjour"})

	for _, room := range []string{chat.AgentsRoom("c1"), chat.ClientsRoom("c1")} {
		msgs := br.messages(room)
		require.Len(t, msgs, 2, "room %s", room)

		assert.False(t, msgs[0].BotReply, "customer broadcast must precede the bot reply")
		assert.Equal(t, "Bonjour", msgs[0].Original)

		reply := msgs[1]
		assert.True(t, reply.BotReply)
		assert.Equal(t, chat.RoleClient, reply.From)
		assert.Equal(t, "你好", reply.ReplyZH, "no knowledge, no rule: echo the Chinese rendition")
		assert.Equal(t, "Bonjour", reply.ReplyFR)
	}

	assert.Equal(t,
		[]string{"client/fr", "client/zh", "bot/zh", "bot/fr"},
		rec.loggedRoles("c1"))
}

func TestOfflineBotPrefersKnowledgeAnswer(t *testing.T) {
	c, br, rec, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()

	_, err := rec.UpsertQA(ctx, "Comment retirer ?", "怎么提现", "请在提现界面提交申请", "manual")
	require.NoError(t, err)

	c.OnAgentSetStatus(ctx, "c1", false)
	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Comment retirer ?"})

	msgs := br.messages(chat.ClientsRoom("c1"))
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[0].SuggestZH, "suggestions are for agents, none is listening")

	reply := msgs[1]
	assert.True(t, reply.BotReply)
	assert.Equal(t, "请在提现界面提交申请", reply.ReplyZH)
	assert.Equal(t, "Soumettez la demande sur la page de retrait", reply.ReplyFR)
}

func TestTakeoverFiresAfterInactivity(t *testing.T) {
	c, br, _, _ := newTestCoordinator(t, Config{
		BotInactivity: 50 * time.Millisecond,
		BotSuppress:   20 * time.Millisecond,
	})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Comment retirer ?"})

	require.Eventually(t, func() bool {
		return len(br.botReplies(chat.ClientsRoom("c1"))) == 1
	}, 2*time.Second, 10*time.Millisecond)

	for _, room := range []string{chat.AgentsRoom("c1"), chat.ClientsRoom("c1")} {
		msgs := br.messages(room)
		require.Len(t, msgs, 2, "room %s", room)
		assert.False(t, msgs[0].BotReply)

		reply := msgs[1]
		assert.True(t, reply.BotReply)
		assert.Equal(t, "怎么提现", reply.ClientZH)
		assert.Equal(t, "您好，提现提交后一般 5-30 分钟到账，请确保账户已完成实名与绑定。", reply.ReplyZH,
			"empty knowledge store falls through to the keyword rules")
		assert.Equal(t, "Le retrait arrive sous 5 a 30 minutes.", reply.ReplyFR)
	}
}

func TestNewerMessageSupersedesPendingReply(t *testing.T) {
	c, br, _, _ := newTestCoordinator(t, Config{BotInactivity: 70 * time.Millisecond})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Bonjour"})
	time.Sleep(25 * time.Millisecond)
	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Comment retirer ?"})

	require.Eventually(t, func() bool {
		return len(br.botReplies(chat.ClientsRoom("c1"))) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	replies := br.botReplies(chat.ClientsRoom("c1"))
	require.Len(t, replies, 1, "only the newest message gets a bot reply")
	assert.Equal(t, "Comment retirer ?", replies[0].Original)
}

func TestAgentMessageCancelsPendingReply(t *testing.T) {
	c, br, rec, _ := newTestCoordinator(t, Config{BotInactivity: 60 * time.Millisecond})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Bonjour"})
	time.Sleep(15 * time.Millisecond)
	c.OnAgentMessage(ctx, "c1", chat.AgentMessage{Message: "你好"})

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, br.botReplies(chat.ClientsRoom("c1")))
	assert.Empty(t, br.botReplies(chat.AgentsRoom("c1")))

	msgs := br.messages(chat.ClientsRoom("c1"))
	require.Len(t, msgs, 2)
	agentMsg := msgs[1]
	assert.Equal(t, chat.RoleAgent, agentMsg.From)
	assert.Equal(t, "你好", agentMsg.Original)
	assert.Equal(t, "Bonjour", agentMsg.Translated)
	assert.Empty(t, br.messages(chat.AgentsRoom("c1"))[1:], "agent replies go to customers only")

	assert.Equal(t,
		[]string{"client/fr", "client/zh", "agent/zh", "agent/fr"},
		rec.loggedRoles("c1"))
}

func TestAgentTypingCancelsPendingReply(t *testing.T) {
	c, br, _, _ := newTestCoordinator(t, Config{BotInactivity: 50 * time.Millisecond})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Bonjour"})
	time.Sleep(10 * time.Millisecond)
	c.OnAgentTyping(ctx, "c1")

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, br.botReplies(chat.ClientsRoom("c1")))
}

func TestTypingBeforeMessageDefersTakeover(t *testing.T) {
	c, br, _, _ := newTestCoordinator(t, Config{
		BotInactivity: 50 * time.Millisecond,
		BotSuppress:   300 * time.Millisecond,
	})
	ctx := context.Background()

	c.OnAgentTyping(ctx, "c1")
	time.Sleep(10 * time.Millisecond)
	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Bonjour"})

	// Deadline passes at ~50ms but the typing window holds until ~300ms.
	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, br.botReplies(chat.ClientsRoom("c1")), "suppression window must defer the takeover")

	require.Eventually(t, func() bool {
		return len(br.botReplies(chat.ClientsRoom("c1"))) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAgentConnectCancelsPendingReply(t *testing.T) {
	c, br, _, _ := newTestCoordinator(t, Config{BotInactivity: 60 * time.Millisecond})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Bonjour"})
	time.Sleep(10 * time.Millisecond)
	c.OnConnect(ctx, "c1", chat.RoleAgent)

	statuses := br.statuses(chat.Room("c1"))
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Online)

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, br.botReplies(chat.ClientsRoom("c1")))
}

func TestAgentImageRelaysToClientsOnly(t *testing.T) {
	c, br, rec, _ := newTestCoordinator(t, Config{BotInactivity: 60 * time.Millisecond})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Bonjour"})
	time.Sleep(10 * time.Millisecond)
	c.OnAgentMessage(ctx, "c1", chat.AgentMessage{Image: "data:image/png;base64,xyz"})

	clientMsgs := br.messages(chat.ClientsRoom("c1"))
	require.Len(t, clientMsgs, 2)
	assert.Equal(t, "data:image/png;base64,xyz", clientMsgs[1].Image)
	assert.Equal(t, chat.RoleAgent, clientMsgs[1].From)
	require.Len(t, br.messages(chat.AgentsRoom("c1")), 1, "image must not bounce back to agents")

	// The image still counts as agent activity.
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, br.botReplies(chat.ClientsRoom("c1")))

	assert.Contains(t, rec.loggedRoles("c1"), "agent/img")
}

func TestClientImageSkipsPipeline(t *testing.T) {
	c, br, rec, tr := newTestCoordinator(t, Config{BotInactivity: 30 * time.Millisecond})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Image: "data:image/png;base64,abc"})

	for _, room := range []string{chat.AgentsRoom("c1"), chat.ClientsRoom("c1")} {
		msgs := br.messages(room)
		require.Len(t, msgs, 1, "room %s", room)
		assert.Equal(t, "data:image/png;base64,abc", msgs[0].Image)
		assert.Empty(t, msgs[0].Original)
	}

	assert.Zero(t, tr.callCount(), "images bypass translation")
	assert.Equal(t, []string{"client/img"}, rec.loggedRoles("c1"))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, br.botReplies(chat.ClientsRoom("c1")), "images never schedule a takeover")
}

func TestBlankMessagesAreIgnored(t *testing.T) {
	c, br, rec, tr := newTestCoordinator(t, Config{BotInactivity: 40 * time.Millisecond})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "   "})
	assert.Empty(t, br.messages(chat.AgentsRoom("c1")))
	assert.Empty(t, rec.loggedRoles("c1"))
	assert.Zero(t, tr.callCount())

	// A blank agent message is dropped too, but still counts as activity.
	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Bonjour"})
	time.Sleep(10 * time.Millisecond)
	c.OnAgentMessage(ctx, "c1", chat.AgentMessage{Message: "  "})

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, br.botReplies(chat.ClientsRoom("c1")))
	require.Len(t, br.messages(chat.ClientsRoom("c1")), 1, "blank agent message must not be relayed")
}

func TestAgentStatusToggle(t *testing.T) {
	c, br, _, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()

	assert.True(t, c.AgentOnline("c1"), "conversations start with the agent presumed online")

	c.OnAgentSetStatus(ctx, "c1", false)
	c.OnAgentSetStatus(ctx, "c1", true)

	statuses := br.statuses(chat.Room("c1"))
	require.Len(t, statuses, 2)
	assert.False(t, statuses[0].Online)
	assert.True(t, statuses[1].Online)
	assert.True(t, c.AgentOnline("c1"))
}

func TestAgentAnswerIsLearned(t *testing.T) {
	c, _, rec, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Comment retirer ?"})
	c.OnAgentMessage(ctx, "c1", chat.AgentMessage{Message: "请在提现界面提交申请"})

	rec.mu.Lock()
	upserts := append([]upsertCall(nil), rec.upserts...)
	rec.mu.Unlock()
	require.Len(t, upserts, 1)
	assert.Equal(t, "Comment retirer ?", upserts[0].qFR)
	assert.Equal(t, "怎么提现", upserts[0].qZH)
	assert.Equal(t, "请在提现界面提交申请", upserts[0].aZH)
	assert.Equal(t, store.SourceAgentAuto, upserts[0].source)
}

func TestLearnedAnswerSuggestedInOtherConversation(t *testing.T) {
	c, br, _, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()

	c.OnClientMessage(ctx, "e", chat.ClientMessage{Message: "Comment retirer ?"})
	c.OnAgentMessage(ctx, "e", chat.AgentMessage{Message: "请在提现界面提交申请"})

	c.OnClientMessage(ctx, "f", chat.ClientMessage{Message: "Comment retirer ?"})

	msgs := br.messages(chat.AgentsRoom("f"))
	require.Len(t, msgs, 1)
	assert.Equal(t, "请在提现界面提交申请", msgs[0].SuggestZH)
}

func TestLearningWindowExpires(t *testing.T) {
	c, br, rec, _ := newTestCoordinator(t, Config{LearningWindow: 20 * time.Millisecond})
	ctx := context.Background()

	c.OnClientMessage(ctx, "c1", chat.ClientMessage{Message: "Bonjour"})
	time.Sleep(60 * time.Millisecond)
	c.OnAgentMessage(ctx, "c1", chat.AgentMessage{Message: "你好"})

	assert.Zero(t, rec.upsertCount(), "a stale question must not be paired")
	require.Len(t, br.messages(chat.ClientsRoom("c1")), 2, "the relay itself still happens")
}

func TestAgentMessageWithoutQuestionLearnsNothing(t *testing.T) {
	c, br, rec, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()

	c.OnAgentMessage(ctx, "c1", chat.AgentMessage{Message: "你好"})

	assert.Zero(t, rec.upsertCount())
	require.Len(t, br.messages(chat.ClientsRoom("c1")), 1)
}

func TestAgentMessageHonorsTargetLang(t *testing.T) {
	c, br, rec, tr := newTestCoordinator(t, Config{})
	ctx := context.Background()

	tr.mu.Lock()
	tr.table["你好|en"] = "Hello"
	tr.mu.Unlock()

	c.OnAgentMessage(ctx, "c1", chat.AgentMessage{Message: "你好", TargetLang: "en"})

	msgs := br.messages(chat.ClientsRoom("c1"))
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Translated)
	assert.Equal(t, []string{"agent/zh", "agent/en"}, rec.loggedRoles("c1"))
}
