package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *Client) SetModel(model string) {
	c.model = model
}

// Draft is a parsed natural-language reminder. BaseAt and EndDate use
// "YYYY-MM-DD HH:MM" in the user's local time; Rule is an RFC 5545
// RRULE string, empty for a one-time reminder.
type Draft struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	BaseAt      string  `json:"base_at"`
	Rule        string  `json:"rule"`
	Priority    string  `json:"priority"`
	EndCount    int     `json:"end_count"`
	EndDate     string  `json:"end_date"`
	Confidence  float64 `json:"confidence"`
	// Multi-turn conversation fields
	NeedMoreInfo   bool   `json:"need_more_info"`
	FollowUpPrompt string `json:"follow_up_prompt"`
	RawResponse    string `json:"-"`
}

// Message represents a chat message for multi-turn conversations
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const systemPromptTemplate = `You parse natural-language reminder requests into a structured draft.

Current time: %s

Fields:
- title: short imperative summary of what to remind about
- description: extra detail, empty if none
- base_at: first occurrence, "YYYY-MM-DD HH:MM" local time. Resolve
  relative phrases ("tomorrow", "in 3 hours", "next Monday") against the
  current time. If the user gave a time of day with no date and that time
  is already past today, use tomorrow.
- rule: RFC 5545 RRULE for recurring reminders, e.g.
  "FREQ=DAILY", "FREQ=WEEKLY;BYDAY=MO,WE,FR",
  "FREQ=MONTHLY;BYMONTHDAY=31", "FREQ=MINUTELY;INTERVAL=90".
  Empty string for a one-time reminder.
- priority: "low", "medium", or "high". Use "high" only when the user
  signals urgency (medication, deadlines, "important", "don't let me miss").
- end_count: stop after this many occurrences, 0 for no count limit.
- end_date: stop on this date, "YYYY-MM-DD HH:MM", empty for none.
- confidence: 0 to 1.
- need_more_info: true when the request cannot be turned into a draft
  (no subject, or no way to place it in time).
- follow_up_prompt: the question to ask the user when need_more_info is
  true, e.g. "What should I remind you about, and when?"`

func getSystemPrompt() string {
	now := time.Now()
	return fmt.Sprintf(systemPromptTemplate, now.Format("2006-01-02 15:04 (Monday)"))
}

// JSON Schema for structured output
var draftSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"title": {
			"type": "string",
			"description": "Short summary of what to remind about"
		},
		"description": {
			"type": "string",
			"description": "Extra detail, empty if none"
		},
		"base_at": {
			"type": "string",
			"description": "First occurrence as YYYY-MM-DD HH:MM in local time"
		},
		"rule": {
			"type": "string",
			"description": "RFC 5545 RRULE string, empty for one-time reminders"
		},
		"priority": {
			"type": "string",
			"enum": ["low", "medium", "high"],
			"description": "Reminder priority"
		},
		"end_count": {
			"type": "integer",
			"description": "Stop after this many occurrences, 0 for none"
		},
		"end_date": {
			"type": "string",
			"description": "Stop on this date as YYYY-MM-DD HH:MM, empty for none"
		},
		"confidence": {
			"type": "number",
			"minimum": 0,
			"maximum": 1,
			"description": "Confidence score between 0 and 1"
		},
		"need_more_info": {
			"type": "boolean",
			"description": "Whether more information is needed from the user"
		},
		"follow_up_prompt": {
			"type": "string",
			"description": "The follow-up question to ask when need_more_info is true"
		}
	},
	"required": ["title", "base_at", "rule", "priority", "confidence", "need_more_info"],
	"additionalProperties": false
}`)

// ParseDraft turns one free-text message into a reminder draft.
func (c *Client) ParseDraft(ctx context.Context, userMessage string) (*Draft, error) {
	return c.ParseDraftWithHistory(ctx, []Message{{Role: "user", Content: userMessage}})
}

// ParseDraftWithHistory parses using conversation history, for follow-up
// answers after a need_more_info round.
func (c *Client) ParseDraftWithHistory(ctx context.Context, history []Message) (*Draft, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: getSystemPrompt(),
		},
	}

	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "reminder_draft",
				Schema: draftSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	content := resp.Choices[0].Message.Content
	draft := &Draft{RawResponse: content}

	if err := json.Unmarshal([]byte(content), draft); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	return draft, nil
}

// BaseTime resolves the draft's base_at in the given location.
func (d *Draft) BaseTime(loc *time.Location) (time.Time, error) {
	if d.BaseAt == "" {
		return time.Time{}, fmt.Errorf("draft has no base time")
	}
	return time.ParseInLocation("2006-01-02 15:04", d.BaseAt, loc)
}

// EndTime resolves the draft's end_date, if any.
func (d *Draft) EndTime(loc *time.Location) (*time.Time, error) {
	if d.EndDate == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", d.EndDate, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
