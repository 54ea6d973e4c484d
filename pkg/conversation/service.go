package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/history"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/llm"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/logging"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/session"
)

const recommendationFallback = "I apologize, but I encountered an error while getting recommendations. Please try again."

// Service routes a user message end to end: classify intent, run the
// right action (browser task, recommendation, or direct answer), record
// the exchange, and chunk the reply for the transport.
type Service struct {
	classifier *Classifier
	formatter  *Formatter
	manager    *session.Manager
	provider   llm.Provider
	store      history.Store
	log        *logging.Logger

	maxTurns  int
	maxLength int
}

// NewService wires a Service from its collaborators.
func NewService(manager *session.Manager, provider llm.Provider, store history.Store, maxTurns int, log *logging.Logger) *Service {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Service{
		classifier: NewClassifier(provider, log),
		formatter:  NewFormatter(provider, log),
		manager:    manager,
		provider:   provider,
		store:      store,
		log:        log,
		maxTurns:   maxTurns,
		maxLength:  DefaultMaxMessageLength,
	}
}

// HandleMessage processes one user message and returns reply chunks
// sized for the transport. The reply is always non-empty text.
func (s *Service) HandleMessage(ctx context.Context, userID, text string) []string {
	turns := s.recentTurns(userID)
	intent := s.classifier.Classify(ctx, text, turns)
	if s.log != nil {
		s.log.Infof("message from user %s classified as %s", userID, intent)
	}

	var reply string
	switch intent {
	case IntentRecommendation:
		reply = s.recommend(ctx, text)
	case IntentBooking:
		reply = s.runTask(ctx, userID, text, session.TaskBooking)
	case IntentGeneral:
		reply = s.answer(ctx, text, turns)
	default:
		reply = s.runTask(ctx, userID, text, session.TaskSearch)
	}

	s.record(userID, history.RoleUser, text)
	s.record(userID, history.RoleAssistant, reply)
	return SplitMessage(reply, s.maxLength)
}

// runTask dispatches a browser task and formats the result. A task
// error already carries user-safe text, which is returned as-is.
func (s *Service) runTask(ctx context.Context, userID, text string, kind session.TaskKind) string {
	result, err := s.manager.ExecuteTask(ctx, userID, text, kind)
	if err != nil {
		return result
	}
	return s.formatter.Format(ctx, text, result)
}

// recommend answers from model knowledge alone, without the browser.
func (s *Service) recommend(ctx context.Context, query string) string {
	prompt := fmt.Sprintf(`You are a knowledgeable travel and hospitality assistant. The user is asking for recommendations.

USER REQUEST: %q

Provide detailed recommendations following these guidelines:
1. Suggest 3-4 specific options
2. For each option include:
   - Name and brief description
   - Price range ($, $$, $$$, $$$$)
   - Known for / Highlights
   - Location/Area
   - Best for (type of traveler/occasion)
3. Keep the tone friendly and conversational
4. Format with clear sections and bullet points
5. End with a note offering to check real-time availability

Focus on providing accurate, helpful information without real-time data.`, query)

	out, err := s.provider.Complete(ctx, []llm.Message{llm.SystemMessage(prompt)})
	if err != nil {
		if s.log != nil {
			s.log.Errorf("getting recommendations: %v", err)
		}
		return recommendationFallback
	}
	return strings.TrimSpace(out)
}

// answer handles general conversation directly.
func (s *Service) answer(ctx context.Context, text string, turns []history.Turn) string {
	messages := []llm.Message{
		llm.SystemMessage("You are a friendly personal concierge helping with restaurants, hotels, events and bookings. Answer briefly and helpfully."),
	}
	for _, turn := range turns {
		if turn.Role == history.RoleUser {
			messages = append(messages, llm.UserMessage(turn.Content))
		} else {
			messages = append(messages, llm.AssistantMessage(turn.Content))
		}
	}
	messages = append(messages, llm.UserMessage(text))

	out, err := s.provider.Complete(ctx, messages)
	if err != nil {
		if s.log != nil {
			s.log.Errorf("answering general message: %v", err)
		}
		return "I'm having a little trouble right now. Could you try that again?"
	}
	return strings.TrimSpace(out)
}

func (s *Service) recentTurns(userID string) []history.Turn {
	if s.store == nil {
		return nil
	}
	turns, err := s.store.Recent(userID, s.maxTurns)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("loading history for user %s: %v", userID, err)
		}
		return nil
	}
	return turns
}

func (s *Service) record(userID, role, content string) {
	if s.store == nil {
		return
	}
	if err := s.store.Append(userID, role, content); err != nil && s.log != nil {
		s.log.Warnf("recording %s turn for user %s: %v", role, userID, err)
	}
}
