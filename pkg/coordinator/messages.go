package coordinator

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lingodesk/lingodesk/pkg/logger"
	"github.com/lingodesk/lingodesk/pkg/store"
	"github.com/lingodesk/lingodesk/pkg/types/chat"
)

// OnClientMessage runs the customer pipeline: translate to Chinese, log both
// renditions, look up a knowledge suggestion and broadcast the message. When
// the agent is offline the bot answers in the same call; otherwise a
// takeover is scheduled for after the inactivity deadline.
func (c *Coordinator) OnClientMessage(ctx context.Context, cid string, msg chat.ClientMessage) {
	ctx, span := tracer.Start(ctx, "client_message", trace.WithAttributes(
		attribute.String("chat.cid", cid),
	))
	defer span.End()

	ts := chat.Timestamp(time.Now())

	if msg.Image != "" {
		payload := chat.NewMessage{CID: cid, From: chat.RoleClient, Image: msg.Image, Timestamp: ts}
		c.broker.Publish(ctx, chat.AgentsRoom(cid), chat.EventNewMessage, payload)
		c.broker.Publish(ctx, chat.ClientsRoom(cid), chat.EventNewMessage, payload)
		c.logMessage(ctx, chat.RoleClient, "img", "[image]", cid)
		return
	}

	original := strings.TrimSpace(msg.Message)
	if original == "" {
		return
	}

	chinese := c.translator.Translate(ctx, original, "zh", "auto")

	st := c.state(cid)
	st.mu.Lock()
	token := time.Now()
	st.lastClientToken = token
	st.lastQA = &clientQA{original: original, chinese: chinese, token: token}
	// A newer customer message supersedes whatever takeover was scheduled
	// for the previous one.
	cancelPendingLocked(st)
	online := st.agentOnline
	st.mu.Unlock()

	c.logMessage(ctx, chat.RoleClient, c.cfg.DefaultClientLang, original, cid)
	c.logMessage(ctx, chat.RoleClient, "zh", chinese, cid)

	kb, err := c.store.RetrieveBest(ctx, original, chinese, retrieveK)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("cid", cid).Warn("knowledge retrieval failed")
		kb = nil
	}

	payload := chat.NewMessage{
		CID:       cid,
		From:      chat.RoleClient,
		Original:  original,
		ClientZH:  chinese,
		Timestamp: ts,
	}
	if online && kb != nil {
		payload.SuggestZH = kb.AnswerZH
	}
	c.broker.Publish(ctx, chat.AgentsRoom(cid), chat.EventNewMessage, payload)
	c.broker.Publish(ctx, chat.ClientsRoom(cid), chat.EventNewMessage, payload)

	if !online {
		// Nobody to wait for. The bot answers right away, reusing the
		// retrieval already in hand.
		c.botReply(ctx, cid, original, chinese, kb)
		return
	}

	c.schedulePending(ctx, cid, token, original, chinese)
}

// OnAgentMessage relays an agent reply to the customers and records the
// question/answer pair when a recent customer question exists. Any kind of
// agent message counts as activity, even one that ends up ignored.
func (c *Coordinator) OnAgentMessage(ctx context.Context, cid string, msg chat.AgentMessage) {
	ctx, span := tracer.Start(ctx, "agent_message", trace.WithAttributes(
		attribute.String("chat.cid", cid),
	))
	defer span.End()

	now := time.Now()
	ts := chat.Timestamp(now)

	st := c.state(cid)
	st.mu.Lock()
	st.lastAgentActivity = now
	cancelPendingLocked(st)
	var qa *clientQA
	if st.lastQA != nil {
		copied := *st.lastQA
		qa = &copied
	}
	st.mu.Unlock()

	if msg.Image != "" {
		payload := chat.NewMessage{CID: cid, From: chat.RoleAgent, Image: msg.Image, Timestamp: ts}
		c.broker.Publish(ctx, chat.ClientsRoom(cid), chat.EventNewMessage, payload)
		c.logMessage(ctx, chat.RoleAgent, "img", "[image]", cid)
		return
	}

	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return
	}

	target := strings.TrimSpace(msg.TargetLang)
	if target == "" {
		target = c.cfg.DefaultClientLang
	}

	translated := c.translator.Translate(ctx, text, target, "auto")

	payload := chat.NewMessage{
		CID:        cid,
		From:       chat.RoleAgent,
		Original:   text,
		Translated: translated,
		Timestamp:  ts,
	}
	c.broker.Publish(ctx, chat.ClientsRoom(cid), chat.EventNewMessage, payload)

	c.logMessage(ctx, chat.RoleAgent, "zh", text, cid)
	c.logMessage(ctx, chat.RoleAgent, target, translated, cid)

	// Learning: the agent presumably just answered the customer's last
	// question, so store the pair while it is still fresh. Failures must
	// never break the relay.
	if qa != nil && qa.chinese != "" && now.Sub(qa.token) < c.cfg.LearningWindow {
		if _, err := c.store.UpsertQA(ctx, qa.original, qa.chinese, text, store.SourceAgentAuto); err != nil {
			logger.G(ctx).WithError(err).WithField("cid", cid).Warn("knowledge learning failed")
		}
	}
}
