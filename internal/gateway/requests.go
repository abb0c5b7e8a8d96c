package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/gateway/ws"
)

var errNoThread = errors.New("request needs a thread")

// HandleRequest answers WebSocket request frames.
func (s *Server) HandleRequest(ctx context.Context, threadID, method string, params json.RawMessage) (any, error) {
	switch method {
	case ws.MethodPromptRespond:
		var p events.PromptResponsePayload
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
		if err := s.respond(p); err != nil {
			return nil, err
		}
		return map[string]string{"status": "delivered"}, nil

	case ws.MethodSessionSnapshot:
		if threadID == "" {
			return nil, errNoThread
		}
		sess, ok := s.deps.Orchestrator.SessionSnapshot(threadID)
		if !ok {
			return nil, fmt.Errorf("no session for thread %s", threadID)
		}
		return sess, nil

	case ws.MethodOrchestrate:
		if threadID == "" {
			return nil, errNoThread
		}
		var req OrchestrateRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
		return s.orchestrate(ctx, threadID, req)

	default:
		return nil, fmt.Errorf("unknown method: %s", method)
	}
}
