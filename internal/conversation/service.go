package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/cartoncaps-assistant/internal/datastore"
	"github.com/wolfman30/cartoncaps-assistant/internal/observability/metrics"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

const (
	defaultSchoolName = "their school"
	noContextSummary  = "No specific context retrieved."
)

// UserDirectory resolves a user's display name and school.
type UserDirectory interface {
	UserDetails(ctx context.Context, userID string) (datastore.UserDetails, error)
}

// ConversationLog persists chat turns.
type ConversationLog interface {
	SaveMessage(ctx context.Context, sessionID, userID, sender, content string, ts time.Time) (int64, error)
}

// ChatService answers one chat turn.
type ChatService interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ServiceOptions wires a Service. Users and Log may be nil, in which case
// lookups fall back to the request values and turns are not persisted.
type ServiceOptions struct {
	Sessions   SessionStore
	Users      UserDirectory
	Log        ConversationLog
	Classifier *IntentClassifier
	Retriever  *ContextRetriever
	Prompts    *PromptBuilder
	Replies    *ReplyGenerator
	DebugInfo  bool
	Logger     *logging.Logger
	Metrics    *metrics.ChatMetrics
	Now        func() time.Time
}

// Service orchestrates a chat turn: session, classification, retrieval,
// prompt, model call, persistence and response shaping.
type Service struct {
	sessions   SessionStore
	users      UserDirectory
	log        ConversationLog
	classifier *IntentClassifier
	retriever  *ContextRetriever
	prompts    *PromptBuilder
	replies    *ReplyGenerator
	debugInfo  bool
	logger     *logging.Logger
	metrics    *metrics.ChatMetrics
	now        func() time.Time
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		sessions:   opts.Sessions,
		users:      opts.Users,
		log:        opts.Log,
		classifier: opts.Classifier,
		retriever:  opts.Retriever,
		prompts:    opts.Prompts,
		replies:    opts.Replies,
		debugInfo:  opts.DebugInfo,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}
	if s.sessions == nil {
		s.sessions = NewMemorySessionStore()
	}
	if s.classifier == nil {
		s.classifier = NewIntentClassifier(nil)
	}
	if s.retriever == nil {
		s.retriever = NewContextRetriever(nil, nil, 0, logger, opts.Metrics)
	}
	if s.prompts == nil {
		s.prompts = NewPromptBuilder(DefaultHistoryWindow)
	}
	if s.replies == nil {
		s.replies = NewReplyGenerator(nil, "", 0, logger, opts.Metrics)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Chat runs one turn. Only request validation produces an error; data and
// model failures degrade to fallback text.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := req.Normalize(s.now()); err != nil {
		return nil, err
	}
	userID := req.UserID.String()
	logger := s.logger.With("session_id", req.SessionID, "user_id", userID)

	unlock, err := s.sessions.Lock(ctx, req.SessionID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("session lock unavailable, continuing unlocked", "error", err)
		unlock = func() {}
	}
	defer unlock()

	history, err := s.sessions.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		logger.Warn("failed to load session history", "error", err)
		s.metrics.ObserveDataFailure("session_load")
		history = nil
	}
	seeded := false
	if len(history) == 0 && len(req.ConversationHistory) > 0 {
		history = cloneMessages(req.ConversationHistory)
		seeded = true
		logger.Info("seeded session history from client", "messages", len(history))
	}

	userMsg := Message{
		ID:        uuid.NewString(),
		Role:      ChatRoleUser,
		Content:   req.Message.Text,
		Timestamp: req.Message.Timestamp,
	}
	history = append(history, userMsg)
	if seeded {
		err = s.sessions.Replace(ctx, req.SessionID, history)
	} else {
		err = s.sessions.Append(ctx, req.SessionID, userMsg)
	}
	if err != nil {
		logger.Warn("failed to store user turn in session", "error", err)
		s.metrics.ObserveDataFailure("session_store")
	}
	s.persist(ctx, logger, req.SessionID, userID, userMsg)

	userName, schoolName := s.resolveUser(ctx, logger, &req)

	cls := s.classifier.Classify(req.Message.Text)
	s.metrics.ObserveTurn(string(cls.Intent))
	logger.Info("intent classified", "intent", cls.Intent, "keyword", cls.Keyword)
	retrieval := s.retriever.Retrieve(ctx, cls, req.Message.Text)

	prompt := s.prompts.Build(PromptInput{
		UserName:   userName,
		SchoolName: schoolName,
		Context:    retrieval.Context,
		History:    history,
		Query:      req.Message.Text,
	})

	replyText := s.replies.Generate(ctx, prompt)
	if strings.TrimSpace(replyText) == "" {
		replyText = ConnectivityReply
	}

	assistantMsg := Message{
		ID:        uuid.NewString(),
		Role:      ChatRoleAssistant,
		Content:   replyText,
		Timestamp: s.now(),
	}
	history = append(history, assistantMsg)
	s.persist(ctx, logger, req.SessionID, userID, assistantMsg)

	if err := s.sessions.Replace(ctx, req.SessionID, history); err != nil {
		logger.Warn("failed to store session history", "error", err)
		s.metrics.ObserveDataFailure("session_store")
	}

	resp := &ChatResponse{
		SessionID:                  req.SessionID,
		Reply:                      Reply{Text: replyText, Timestamp: assistantMsg.Timestamp},
		UpdatedConversationHistory: history,
		SuggestedActions:           SuggestedActionsFor(retrieval),
	}
	if s.debugInfo {
		resp.DebugInfo = buildDebugInfo(retrieval, prompt)
	}
	return resp, nil
}

// History returns the session's stored messages.
func (s *Service) History(ctx context.Context, sessionID string) ([]Message, error) {
	return s.sessions.GetOrCreate(ctx, sessionID)
}

// persist writes one turn to the conversation log, renaming assistant to bot.
func (s *Service) persist(ctx context.Context, logger *logging.Logger, sessionID, userID string, msg Message) {
	if s.log == nil {
		return
	}
	if _, err := s.log.SaveMessage(ctx, sessionID, userID, PersistedSender(msg.Role), msg.Content, msg.Timestamp); err != nil {
		logger.Warn("failed to persist conversation turn", "role", msg.Role, "error", err)
		s.metrics.ObserveDataFailure("save_message")
	}
}

// resolveUser returns the display name and school for the prompt. The user
// id and the client-supplied school name are fallbacks.
func (s *Service) resolveUser(ctx context.Context, logger *logging.Logger, req *ChatRequest) (string, string) {
	userID := req.UserID.String()
	var name, school string
	if s.users != nil {
		details, err := s.users.UserDetails(ctx, userID)
		switch {
		case err == nil:
			name = strings.TrimSpace(details.UserName)
			school = strings.TrimSpace(details.SchoolName())
		case errors.Is(err, datastore.ErrNotFound):
			logger.Info("user not found, using request values")
		default:
			logger.Warn("user lookup failed", "error", err)
			s.metrics.ObserveDataFailure("user_details")
		}
	}
	if name == "" {
		name = userID
	}
	if school == "" {
		school = req.ProfileSchoolName()
	}
	if school == "" {
		school = defaultSchoolName
	}
	return name, school
}

// PersistedSender maps a session role to the conversation log vocabulary.
func PersistedSender(role string) string {
	if role == ChatRoleAssistant {
		return datastore.SenderBot
	}
	return datastore.SenderUser
}

func buildDebugInfo(r Retrieval, prompt string) *DebugInfo {
	summary := r.Context
	if summary == "" {
		summary = noContextSummary
	}
	sources := r.Sources
	if len(sources) == 0 {
		sources = []string{SourceNone}
	}
	return &DebugInfo{
		IntentDetected:          string(r.Intent),
		RetrievedContextSummary: summary,
		DataSourcesUsed:         sources,
		LLMPrompt:               prompt,
	}
}
