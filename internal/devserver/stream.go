// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/model"
)

// Wire literals of the reply stream.
const (
	holdingsTag = "[HOLDINGS] "
	stocksTag   = "[STOCKS] "
	doneTag     = "[DONE]"
)

type streamBody struct {
	Content string `json:"content"`
}

// handleStream persists the user's message, then answers with payload
// frames, the reply text in word-sized frames, and [DONE]. The assistant
// message is stored just before [DONE], so a client that refreshes after
// the stream sees it.
func (s *Server) handleStream(c *gin.Context) {
	var body streamBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Content) == "" {
		detail(c, http.StatusBadRequest, "content required")
		return
	}
	ctx := c.Request.Context()
	user := userOf(c)
	id := c.Param("id")

	if _, err := s.db.GetConversation(ctx, user.UserID, id); err != nil {
		s.storageError(c, "get conversation", err)
		return
	}
	if err := s.db.AppendMessages(ctx, user.UserID, id, model.NewUserMessage(body.Content)); err != nil {
		s.storageError(c, "store user message", err)
		return
	}

	reply := s.script.Load().Match(body.Content)
	frames, text, err := s.render(reply, body.Content)
	if err != nil {
		s.internalError(c, "render reply", err)
		return
	}

	s.stats.streams.Add(1)
	log := s.logger.With(zap.String("conversation_id", id))
	log.Debug("Streaming reply", zap.Int("frames", len(frames)))

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for i, f := range frames {
		if i > 0 && s.cfg.ChunkDelay > 0 && !sleepCtx(ctx, s.cfg.ChunkDelay) {
			log.Info("Client went away mid-stream", zap.Int("sent", i))
			return
		}
		if !s.writeFrame(c, f) {
			return
		}
	}

	answer := model.NewAssistantMessage()
	answer.Content = text
	if err := s.db.AppendMessages(ctx, user.UserID, id, answer); err != nil {
		// Headers are out; the client only sees a stream without [DONE].
		log.Error("Failed to store reply", zap.Error(err))
		return
	}
	s.writeFrame(c, doneTag)
}

func (s *Server) writeFrame(c *gin.Context, data string) bool {
	if _, err := c.Writer.WriteString("data: " + data + "\n\n"); err != nil {
		return false
	}
	c.Writer.Flush()
	s.stats.frames.Add(1)
	return true
}

// render turns a scripted reply into frame payloads plus the text to store.
func (s *Server) render(r Reply, input string) (frames []string, text string, err error) {
	if len(r.Frames) > 0 {
		var sb strings.Builder
		for _, f := range r.Frames {
			if !strings.HasPrefix(f, "[") {
				sb.WriteString(f)
			}
		}
		return r.Frames, sb.String(), nil
	}

	if r.holdings != nil {
		raw, err := json.Marshal(r.holdings)
		if err != nil {
			return nil, "", err
		}
		frames = append(frames, holdingsTag+string(raw))
	}
	if r.stocks != nil {
		p := r.stocks
		if q, ok := p.(market.Quote); ok && len(q.History1D) == 0 {
			q.History1D = Series(q.Symbol, market.Period1D, s.now())
			p = q
		}
		raw, err := market.EncodeStocks(p)
		if err != nil {
			return nil, "", err
		}
		frames = append(frames, stocksTag+string(raw))
	}

	text = replyText(r.Text, input)
	return append(frames, chunkText(text)...), text, nil
}

// replyText fills in {input} and normalises the text so it fits in data
// frames: a blank line would end a frame early.
func replyText(tmpl, input string) string {
	text := strings.ReplaceAll(tmpl, "{input}", input)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for strings.Contains(text, "\n\n") {
		text = strings.ReplaceAll(text, "\n\n", "\n")
	}
	return strings.Trim(text, "\n")
}

// chunkText splits text after each space. A piece starting with "[" is
// joined to the one before it so no frame reads as a control tag.
func chunkText(text string) []string {
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "[") {
		return []string{text}
	}
	var out []string
	for _, part := range strings.SplitAfter(text, " ") {
		if part == "" {
			continue
		}
		if len(out) > 0 && strings.HasPrefix(part, "[") {
			out[len(out)-1] += part
			continue
		}
		out = append(out, part)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
