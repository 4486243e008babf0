package coordinator

import (
	"context"
	"time"

	"github.com/lingodesk/lingodesk/pkg/logger"
	"github.com/lingodesk/lingodesk/pkg/store"
	"github.com/lingodesk/lingodesk/pkg/types/chat"
)

// schedulePending arms the bot takeover for the customer message identified
// by token. The task is detached from the request context so a dropped
// socket does not silence the bot, but it remains cancellable through the
// conversation state.
func (c *Coordinator) schedulePending(ctx context.Context, cid string, token time.Time, original, chinese string) {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	st := c.state(cid)
	st.mu.Lock()
	if !st.lastClientToken.Equal(token) {
		// A racing customer message already superseded this one.
		st.mu.Unlock()
		cancel()
		return
	}
	cancelPendingLocked(st)
	st.cancelPending = cancel
	st.pendingToken = token
	st.mu.Unlock()

	go c.runPendingTask(taskCtx, cid, token, original, chinese)
}

// runPendingTask waits out the inactivity deadline and answers the customer
// if no agent showed up. A reply goes out only when, at decision time, the
// triggering message is still the newest one, no agent activity postdates
// it, and no typing suppression is in force.
func (c *Coordinator) runPendingTask(ctx context.Context, cid string, token time.Time, original, chinese string) {
	defer func() {
		st := c.state(cid)
		st.mu.Lock()
		if st.pendingToken.Equal(token) {
			st.cancelPending = nil
			st.pendingToken = time.Time{}
		}
		st.mu.Unlock()
		c.maybeReap(cid)
	}()

	timer := time.NewTimer(time.Until(token.Add(c.cfg.BotInactivity)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	for {
		st := c.state(cid)
		st.mu.Lock()
		stale := !st.lastClientToken.Equal(token) || st.lastAgentActivity.After(token)
		wait := time.Until(st.suppressUntil)
		st.mu.Unlock()

		if stale {
			return
		}
		if wait <= 0 {
			break
		}
		// The agent was typing shortly before the customer message; hold
		// the takeover until the window closes, then re-check since more
		// typing may have cancelled us outright.
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	logger.G(ctx).WithField("cid", cid).Info("bot takeover")

	// Query again rather than reusing the result from message time: an
	// answer learned in the meantime should win.
	kb, err := c.store.RetrieveBest(ctx, original, chinese, retrieveK)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("cid", cid).Warn("knowledge retrieval failed")
		kb = nil
	}
	c.botReply(ctx, cid, original, chinese, kb)
}

// botReply composes the automated answer for a customer message and
// broadcasts it to both sub-rooms, agents first. The answer source order is
// knowledge store, keyword rules, then echoing the Chinese rendition of the
// question so the customer at least sees a response.
func (c *Coordinator) botReply(ctx context.Context, cid, original, chinese string, kb *store.Match) {
	replyZH := ""
	if kb != nil {
		replyZH = kb.AnswerZH
	}
	if replyZH == "" {
		replyZH = c.rules.Reply(chinese)
	}
	if replyZH == "" {
		replyZH = chinese
	}

	replyOut := c.translator.Translate(ctx, replyZH, c.cfg.DefaultClientLang, "zh")

	payload := chat.NewMessage{
		CID:       cid,
		From:      chat.RoleClient,
		Original:  original,
		ClientZH:  chinese,
		BotReply:  true,
		ReplyZH:   replyZH,
		ReplyFR:   replyOut,
		Timestamp: chat.Timestamp(time.Now()),
	}
	c.broker.Publish(ctx, chat.AgentsRoom(cid), chat.EventNewMessage, payload)
	c.broker.Publish(ctx, chat.ClientsRoom(cid), chat.EventNewMessage, payload)

	c.logMessage(ctx, chat.RoleBot, "zh", replyZH, cid)
	c.logMessage(ctx, chat.RoleBot, c.cfg.DefaultClientLang, replyOut, cid)
}
