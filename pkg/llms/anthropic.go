// Package llms binds session drivers to external reasoning engines.
package llms

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/XiaoConstantine/ace-go/pkg/core"
	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
)

const defaultMaxTokens = 4096

// AnthropicDriver implements core.SessionDriver over the Anthropic
// Messages streaming API. One driver is one exchange: Start opens the
// stream and translates SSE events into the session event model.
type AnthropicDriver struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
	sessionID string
	loop      core.LoopType

	mu        sync.Mutex
	followUps []string
}

var _ core.SessionDriver = (*AnthropicDriver)(nil)
var _ core.Injector = (*AnthropicDriver)(nil)

// NewAnthropicDriver creates a driver bound to one session id.
func NewAnthropicDriver(apiKey string, model string, loop core.LoopType) (*AnthropicDriver, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ConfigurationFailed, "anthropic api key is required")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicDriver{
		client:    &client,
		model:     anthropic.Model(model),
		maxTokens: defaultMaxTokens,
		sessionID: uuid.NewString(),
		loop:      loop,
	}, nil
}

// AnthropicFactory returns a driver factory producing a fresh driver
// per session. Construction fails fast on missing credentials so the
// failure surfaces before any session starts.
func AnthropicFactory(apiKey string, model string) core.DriverFactory {
	return func(sc *core.SessionContext, loop core.LoopType) (core.SessionDriver, error) {
		return NewAnthropicDriver(apiKey, model, loop)
	}
}

func (d *AnthropicDriver) SessionID() string {
	return d.sessionID
}

// Inject queues a note for the exchange. Queued notes ride along as
// additional user messages on the next Start call.
func (d *AnthropicDriver) Inject(ctx context.Context, note string) error {
	if err := errors.CheckContext(ctx, "inject note"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.followUps = append(d.followUps, note)
	return nil
}

// Start opens the streaming exchange. The returned sequence terminates
// with SessionEnd on a clean message stop; a transport failure becomes
// a terminal Error event rather than an error return.
func (d *AnthropicDriver) Start(ctx context.Context, prompt string) (*core.EventStream, error) {
	if d.client == nil {
		return nil, errors.New(errors.ConfigurationFailed, "anthropic client not configured")
	}

	logger := logging.GetLogger()

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}
	d.mu.Lock()
	for _, note := range d.followUps {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(note)))
	}
	d.followUps = nil
	d.mu.Unlock()

	events := make(chan core.Event)
	streamCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(events)
		defer cancel()

		stream := d.client.Messages.NewStreaming(streamCtx, anthropic.MessageNewParams{
			Model:     d.model,
			Messages:  messages,
			MaxTokens: d.maxTokens,
		})
		defer stream.Close()

		emit := func(p core.Payload) {
			select {
			case events <- core.NewEvent(d.sessionID, d.loop, p):
			case <-streamCtx.Done():
			}
		}

		var textBuf strings.Builder
		flushText := func() {
			if textBuf.Len() > 0 {
				emit(core.AssistantTextPayload{Text: textBuf.String()})
				textBuf.Reset()
			}
		}

		var toolID, toolName string
		var toolJSON strings.Builder

		for stream.Next() {
			event := stream.Current()

			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if block, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					flushText()
					toolID = block.ID
					toolName = block.Name
					toolJSON.Reset()
				}

			case anthropic.ContentBlockDeltaEvent:
				if textDelta := variant.Delta.AsTextDelta(); textDelta.Text != "" {
					textBuf.WriteString(textDelta.Text)
				}
				if jsonDelta := variant.Delta.AsInputJSONDelta(); jsonDelta.PartialJSON != "" {
					toolJSON.WriteString(jsonDelta.PartialJSON)
				}

			case anthropic.ContentBlockStopEvent:
				if toolName != "" {
					input := make(map[string]any)
					if toolJSON.Len() > 0 {
						if err := json.Unmarshal([]byte(toolJSON.String()), &input); err != nil {
							logger.Warn(streamCtx, "malformed tool input json: %v", err)
						}
					}
					emit(core.ToolInvocationPayload{
						InvocationID: toolID,
						Tool:         toolName,
						Input:        input,
					})
					toolID, toolName = "", ""
					toolJSON.Reset()
				} else {
					flushText()
				}

			case anthropic.MessageStopEvent:
				flushText()
				emit(core.SessionEndPayload{Success: true})

			case anthropic.MessageStartEvent, anthropic.MessageDeltaEvent:
				// Usage accounting events carry no session content.

			default:
				logger.Debug(streamCtx, "unhandled stream event type: %T", event)
			}
		}

		if err := stream.Err(); err != nil {
			var apiErr *anthropic.Error
			if stderrors.As(err, &apiErr) {
				logger.Error(streamCtx, "anthropic streaming error: status code %d", apiErr.StatusCode)
			}
			flushText()
			emit(core.ErrorPayload{Message: err.Error()})
		}
	}()

	return &core.EventStream{Events: events, Cancel: cancel}, nil
}
