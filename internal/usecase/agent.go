package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
)

const (
	defaultMaxIterations = 5
	actionFinish         = "finish"
	maxObservationLength = 2000
)

const agentSystemPrompt = `You are a nutrition scientist scoring a food product for one specific person.
Work step by step. On every turn reply with exactly one JSON object and nothing else:
{"thought": "...", "action": "<tool name or finish>", "arguments": {...}, "answer": null}

When you have enough evidence use action "finish" and fill "answer":
{"score": 0-10, "verdict": "good|moderate|avoid", "reasoning": "explanation with inline citations like [1]",
 "warnings": ["..."], "highlights": ["..."], "confidence": 0-1}

Only cite citation ids that a tool returned or that are listed as already registered.`

const forceFinishPrompt = `You have used all research steps. Reply now with action "finish" and your best answer.`

// AgentAnswer is the raw final answer proposed by the model, normalized later
type AgentAnswer struct {
	Score      any    `json:"score"`
	Verdict    any    `json:"verdict"`
	Reasoning  string `json:"reasoning"`
	Warnings   any    `json:"warnings"`
	Highlights any    `json:"highlights"`
	Confidence any    `json:"confidence"`
}

// agentStep is one model turn
type agentStep struct {
	Thought   string         `json:"thought"`
	Action    string         `json:"action"`
	Arguments map[string]any `json:"arguments"`
	Answer    *AgentAnswer   `json:"answer"`
}

// AgentOutcome is a finished reasoning run
type AgentOutcome struct {
	Answer     AgentAnswer
	Steps      []string
	Iterations int
}

// AgentInput is what the agent reasons about
type AgentInput struct {
	Nutrition    map[string]any
	Profile      *domain.UserProfile
	CitationHint string
}

// ScoringAgent runs a bounded reason/act/observe loop against a language model
type ScoringAgent struct {
	model         domain.LanguageModel
	maxIterations int
	logger        zerolog.Logger
}

// NewScoringAgent creates an agent; maxIterations <= 0 uses the default of 5
func NewScoringAgent(model domain.LanguageModel, maxIterations int, logger zerolog.Logger) *ScoringAgent {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &ScoringAgent{
		model:         model,
		maxIterations: maxIterations,
		logger:        logger.With().Str("component", "agent").Logger(),
	}
}

// Run reasons until the model finishes or the iteration ceiling is hit, in which case
// the model gets one final turn to answer. Any model failure, unparsable reply or
// unknown tool ends the run with an error.
func (a *ScoringAgent) Run(ctx context.Context, input AgentInput, tools *ToolRegistry) (*AgentOutcome, error) {
	prompt, err := buildAgentTask(input, tools)
	if err != nil {
		return nil, err
	}

	messages := []domain.ChatMessage{{Role: "user", Content: prompt}}
	var steps []string

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		step, reply, err := a.next(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}
		messages = append(messages, domain.ChatMessage{Role: "assistant", Content: reply})
		if step.Thought != "" {
			steps = append(steps, "Thought: "+step.Thought)
		}

		if step.Action == actionFinish {
			if step.Answer == nil {
				return nil, fmt.Errorf("iteration %d: finish without answer", iteration)
			}
			return &AgentOutcome{Answer: *step.Answer, Steps: steps, Iterations: iteration}, nil
		}

		steps = append(steps, fmt.Sprintf("Action: %s(%s)", step.Action, formatArguments(step.Arguments)))
		observation, err := tools.Call(ctx, step.Action, step.Arguments)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownTool) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Debug().Err(err).Str("tool", step.Action).Msg("tool call failed")
			observation = fmt.Sprintf(`{"error": %q}`, err.Error())
		}
		steps = append(steps, "Observation: "+summarizeObservation(observation))
		messages = append(messages, domain.ChatMessage{
			Role:    "user",
			Content: "Observation: " + truncateRunes(observation, maxObservationLength),
		})
	}

	messages = append(messages, domain.ChatMessage{Role: "user", Content: forceFinishPrompt})
	step, _, err := a.next(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("final answer: %w", err)
	}
	if step.Action != actionFinish || step.Answer == nil {
		return nil, domain.ErrAgentExhausted
	}
	if step.Thought != "" {
		steps = append(steps, "Thought: "+step.Thought)
	}
	return &AgentOutcome{Answer: *step.Answer, Steps: steps, Iterations: a.maxIterations + 1}, nil
}

func (a *ScoringAgent) next(ctx context.Context, messages []domain.ChatMessage) (*agentStep, string, error) {
	reply, err := a.model.Complete(ctx, agentSystemPrompt, messages)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrModelFailure, err)
	}
	step, err := parseAgentStep(reply)
	if err != nil {
		return nil, reply, err
	}
	return step, reply, nil
}

// parseAgentStep extracts the JSON object from a model reply, tolerating surrounding prose or fences
func parseAgentStep(reply string) (*agentStep, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var step agentStep
	if err := json.Unmarshal([]byte(reply[start:end+1]), &step); err != nil {
		return nil, fmt.Errorf("unparsable model reply: %w", err)
	}
	step.Action = strings.TrimSpace(step.Action)
	if step.Action == "" {
		if step.Answer != nil {
			step.Action = actionFinish
		} else {
			return nil, fmt.Errorf("model reply has no action")
		}
	}
	return &step, nil
}

func buildAgentTask(input AgentInput, tools *ToolRegistry) (string, error) {
	nutritionJSON, err := json.MarshalIndent(input.Nutrition, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode nutrition data: %w", err)
	}

	profile := map[string]any{}
	if input.Profile != nil {
		profile = map[string]any{
			"demographics":     input.Profile.Demographics,
			"lifestyle_habits": input.Profile.LifestyleHabits,
			"goals":            input.Profile.Goals,
			"food_preferences": input.Profile.FoodPreferences,
			"health_metrics":   input.Profile.HealthMetrics,
			"daily_targets":    input.Profile.DailyTargets,
		}
	}
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}

	var b strings.Builder
	b.WriteString("Nutrition data (per 100g):\n")
	b.Write(nutritionJSON)
	b.WriteString("\n\nUser health profile:\n")
	b.Write(profileJSON)
	b.WriteString("\n\nAvailable tools:\n")
	b.WriteString(tools.Describe())
	if input.CitationHint != "" {
		b.WriteString("\nAlready registered sources:\n")
		b.WriteString(input.CitationHint)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func formatArguments(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, ", ")
}

func summarizeObservation(observation string) string {
	var payload map[string]any
	if err := json.Unmarshal([]byte(observation), &payload); err != nil {
		return truncateRunes(observation, 120)
	}
	if msg, ok := payload["error"].(string); ok {
		return "error: " + msg
	}

	var ids []int
	for _, key := range []string{"sources", "products", "guidelines"} {
		items, _ := payload[key].([]any)
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				if id, ok := m["citation_id"].(float64); ok {
					ids = append(ids, int(id))
				}
			}
		}
	}
	if len(ids) == 0 {
		return "no results"
	}

	markers := make([]string, len(ids))
	for i, id := range ids {
		markers[i] = fmt.Sprintf("[%d]", id)
	}
	return fmt.Sprintf("%d results %s", len(ids), strings.Join(markers, " "))
}
