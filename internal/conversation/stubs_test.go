package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/cartoncaps-assistant/internal/datastore"
)

type stubLLM struct {
	mu       sync.Mutex
	requests []LLMRequest
	text     string
	err      error
	// echoContext makes the reply repeat the retrieved context block.
	echoContext bool
	delay       time.Duration
}

func (s *stubLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return LLMResponse{}, ctx.Err()
		}
	}
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	if s.echoContext && len(req.Messages) > 0 {
		prompt := req.Messages[len(req.Messages)-1].Content
		if i := strings.Index(prompt, "Retrieved Context:\n"); i >= 0 {
			rest := prompt[i+len("Retrieved Context:\n"):]
			if j := strings.Index(rest, "\n\n"); j >= 0 {
				rest = rest[:j]
			}
			return LLMResponse{Text: "Here is what I found. " + rest}, nil
		}
	}
	return LLMResponse{Text: s.text}, nil
}

func (s *stubLLM) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ""
	}
	msgs := s.requests[len(s.requests)-1].Messages
	return msgs[len(msgs)-1].Content
}

type stubProducts struct {
	rows  []datastore.Product
	err   error
	terms []string
	limit int
}

func (s *stubProducts) SearchProducts(_ context.Context, keyword string, limit int) ([]datastore.Product, error) {
	s.terms = append(s.terms, keyword)
	s.limit = limit
	return s.rows, s.err
}

type stubDocument struct {
	text string
	err  error
}

func (s stubDocument) Load(context.Context) (string, error) {
	return s.text, s.err
}

type stubUsers struct {
	users map[string]datastore.UserDetails
	err   error
}

func (s stubUsers) UserDetails(_ context.Context, userID string) (datastore.UserDetails, error) {
	if s.err != nil {
		return datastore.UserDetails{}, s.err
	}
	u, ok := s.users[userID]
	if !ok {
		return datastore.UserDetails{}, datastore.ErrNotFound
	}
	return u, nil
}

type savedTurn struct {
	SessionID string
	UserID    string
	Sender    string
	Content   string
}

type stubLog struct {
	mu    sync.Mutex
	turns []savedTurn
	err   error
}

func (s *stubLog) SaveMessage(_ context.Context, sessionID, userID, sender, content string, _ time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.turns = append(s.turns, savedTurn{SessionID: sessionID, UserID: userID, Sender: sender, Content: content})
	return int64(len(s.turns)), nil
}
