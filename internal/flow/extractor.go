package flow

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Inverseit/crm-whatsapp-service/internal/genai"
	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/openai/openai-go"
)

// ExtractionApology is returned to the client whenever the LLM round-trip or
// argument parsing fails. Failures never bubble up as errors.
const ExtractionApology = "Извините, произошла ошибка при обработке вашего сообщения. Пожалуйста, попробуйте еще раз."

// ExtractionResult is the outcome of one LLM turn: the assistant text and,
// when the model called collect_booking_info, the parsed advisory arguments.
type ExtractionResult struct {
	Text string
	Args *models.BookingArgs
}

// ExtractionClient runs one conversational turn against the LLM.
type ExtractionClient interface {
	Extract(ctx context.Context, systemPrompt string, history []models.Message) ExtractionResult
}

// Extractor reconstructs the chat history and interrogates the model with the
// booking tool attached.
type Extractor struct {
	client genai.ClientInterface
}

// NewExtractor creates an Extractor backed by the given GenAI client.
func NewExtractor(client genai.ClientInterface) *Extractor {
	return &Extractor{client: client}
}

// Extract sends the system prompt and history to the model. The history must
// be in chronological order and end with the newest inbound message.
func (e *Extractor) Extract(ctx context.Context, systemPrompt string, history []models.Message) ExtractionResult {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, m := range history {
		if m.IsFromBot {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := e.client.GenerateWithTools(ctx, messages, []openai.ChatCompletionToolParam{BookingInfoTool()})
	if err != nil {
		slog.Warn("Extractor.Extract: completion failed, responding with apology", "error", err)
		return ExtractionResult{Text: ExtractionApology}
	}

	result := ExtractionResult{Text: resp.Content}
	for _, tc := range resp.ToolCalls {
		if tc.Name != ToolNameCollectBookingInfo {
			slog.Warn("Extractor.Extract: ignoring unexpected tool call", "name", tc.Name)
			continue
		}
		var args models.BookingArgs
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			slog.Error("Extractor.Extract: failed to parse tool arguments", "error", err)
			continue
		}
		result.Args = &args
		slog.Info("Extractor.Extract: booking data extracted", "client_name", args.ClientName)
		break
	}

	if result.Text == "" && result.Args == nil {
		slog.Warn("Extractor.Extract: empty completion, responding with apology")
		result.Text = ExtractionApology
	}
	return result
}
