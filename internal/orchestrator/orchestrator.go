package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"course-rag/internal/config"
	"course-rag/internal/models"
	"course-rag/internal/session"
	"course-rag/internal/tools"
)

// LLM is the narrow slice of llms.Model the orchestrator needs, so tests
// can fake both phases of the conversation.
type LLM interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Orchestrator drives one user turn as a fixed two-phase protocol: a first
// model call with the tools offered, an optional single round of sequential
// tool execution, then a final call with the tools withheld. The model can
// never chain further tool calls within the same turn.
type Orchestrator struct {
	llm         LLM
	registry    *tools.Registry
	sessions    *session.Store
	temperature float64
	maxTokens   int
}

// New wires the generation loop.
func New(model LLM, registry *tools.Registry, sessions *session.Store, cfg *config.LLMConfig) *Orchestrator {
	return &Orchestrator{
		llm:         model,
		registry:    registry,
		sessions:    sessions,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Query answers one user question, updating the session history with the
// completed turn. LLM transport failures are fatal for the turn and are
// never retried here.
func (o *Orchestrator) Query(ctx context.Context, query, sessionID string) (models.QueryResponse, error) {
	sessionID = o.sessions.GetOrCreate(sessionID)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.SystemPrompt),
	}
	for _, turn := range o.sessions.History(sessionID) {
		messages = append(messages,
			llms.TextParts(llms.ChatMessageTypeHuman, turn.User),
			llms.TextParts(llms.ChatMessageTypeAI, turn.Assistant),
		)
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, query))

	resp, err := o.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(o.temperature),
		llms.WithMaxTokens(o.maxTokens),
		llms.WithTools(o.registry.Definitions()),
	)
	if err != nil {
		return models.QueryResponse{}, fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.QueryResponse{}, fmt.Errorf("generation returned no choices")
	}

	choice := resp.Choices[0]
	answer := choice.Content
	sources := make([]models.Source, 0)

	if len(choice.ToolCalls) > 0 {
		answer, sources, err = o.toolRound(ctx, messages, choice.ToolCalls)
		if err != nil {
			return models.QueryResponse{}, err
		}
	}

	o.sessions.Append(sessionID, query, answer)
	return models.QueryResponse{Answer: answer, Sources: sources, SessionID: sessionID}, nil
}

// toolRound executes the requested tool calls strictly in order, folds the
// outputs back into the conversation and issues the final model call with
// the tool capability withheld.
func (o *Orchestrator) toolRound(ctx context.Context, messages []llms.MessageContent, calls []llms.ToolCall) (string, []models.Source, error) {
	assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	for _, call := range calls {
		assistant.Parts = append(assistant.Parts, call)
	}
	messages = append(messages, assistant)

	sources := make([]models.Source, 0)
	for _, call := range calls {
		if call.FunctionCall == nil {
			continue
		}
		log.Debug().Str("tool", call.FunctionCall.Name).Msg("executing tool call")
		result, err := o.registry.Execute(ctx, call.FunctionCall.Name, call.FunctionCall.Arguments)
		if err != nil {
			return "", nil, fmt.Errorf("tool %s failed: %w", call.FunctionCall.Name, err)
		}
		sources = append(sources, result.Sources...)
		messages = append(messages, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       call.FunctionCall.Name,
				Content:    result.Output,
			}},
		})
	}

	final, err := o.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(o.temperature),
		llms.WithMaxTokens(o.maxTokens),
	)
	if err != nil {
		return "", nil, fmt.Errorf("final generation failed: %w", err)
	}
	if len(final.Choices) == 0 {
		return "", nil, fmt.Errorf("final generation returned no choices")
	}
	return final.Choices[0].Content, sources, nil
}
