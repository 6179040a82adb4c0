package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/Inverseit/crm-whatsapp-service/internal/genai"
	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/openai/openai-go"
)

// mockGenAIClient returns a scripted response and records the request.
type mockGenAIClient struct {
	response     *genai.ToolCallResponse
	err          error
	lastMessages []openai.ChatCompletionMessageParamUnion
	lastTools    []openai.ChatCompletionToolParam
}

func (m *mockGenAIClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response.Content, nil
}

func (m *mockGenAIClient) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	m.lastMessages = messages
	m.lastTools = tools
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func testHistory() []models.Message {
	return []models.Message{
		{Content: "Здравствуйте! Как к вам обращаться?", IsFromBot: true},
		{Content: "Меня зовут Айгерим, хочу на маникюр"},
	}
}

func TestExtractPlainText(t *testing.T) {
	mock := &mockGenAIClient{response: &genai.ToolCallResponse{Content: "Отлично! Какой маникюр вас интересует?"}}
	result := NewExtractor(mock).Extract(context.Background(), "system", testHistory())

	if result.Args != nil {
		t.Error("no tool call expected")
	}
	if result.Text != "Отлично! Какой маникюр вас интересует?" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	// System prompt plus both history messages.
	if len(mock.lastMessages) != 3 {
		t.Errorf("sent %d messages, want 3", len(mock.lastMessages))
	}
	if len(mock.lastTools) != 1 {
		t.Fatalf("sent %d tools, want 1", len(mock.lastTools))
	}
	if got := mock.lastTools[0].Function.Name; got != ToolNameCollectBookingInfo {
		t.Errorf("tool name = %s, want %s", got, ToolNameCollectBookingInfo)
	}
}

func TestExtractToolCall(t *testing.T) {
	mock := &mockGenAIClient{response: &genai.ToolCallResponse{
		Content: "Записываю вас!",
		ToolCalls: []genai.ToolCall{{
			ID:   "call_1",
			Name: ToolNameCollectBookingInfo,
			Arguments: `{"client_name":"Айгерим","phone":"87071234567",` +
				`"preferred_contact_method":"whatsapp_message","service_description":"Маникюр",` +
				`"booking_date":"2025-09-05","use_phone_for_whatsapp":true}`,
		}},
	}}
	result := NewExtractor(mock).Extract(context.Background(), "system", testHistory())

	if result.Args == nil {
		t.Fatal("expected parsed booking args")
	}
	if result.Args.ClientName != "Айгерим" {
		t.Errorf("client name = %q", result.Args.ClientName)
	}
	if result.Args.BookingDate != "2025-09-05" {
		t.Errorf("booking date = %q", result.Args.BookingDate)
	}
	if result.Args.UsePhoneForWhatsApp == nil || !*result.Args.UsePhoneForWhatsApp {
		t.Error("use_phone_for_whatsapp should be true")
	}
	if result.Text != "Записываю вас!" {
		t.Errorf("text = %q", result.Text)
	}
}

func TestExtractCompletionError(t *testing.T) {
	mock := &mockGenAIClient{err: errors.New("api down")}
	result := NewExtractor(mock).Extract(context.Background(), "system", testHistory())

	if result.Args != nil {
		t.Error("no args expected on failure")
	}
	if result.Text != ExtractionApology {
		t.Errorf("text = %q, want apology", result.Text)
	}
}

func TestExtractMalformedArguments(t *testing.T) {
	mock := &mockGenAIClient{response: &genai.ToolCallResponse{
		Content:   "Секундочку",
		ToolCalls: []genai.ToolCall{{ID: "call_1", Name: ToolNameCollectBookingInfo, Arguments: "{not json"}},
	}}
	result := NewExtractor(mock).Extract(context.Background(), "system", testHistory())

	if result.Args != nil {
		t.Error("malformed arguments should not produce args")
	}
	if result.Text != "Секундочку" {
		t.Errorf("text = %q", result.Text)
	}
}

func TestExtractIgnoresUnknownTool(t *testing.T) {
	mock := &mockGenAIClient{response: &genai.ToolCallResponse{
		ToolCalls: []genai.ToolCall{{ID: "call_1", Name: "delete_everything", Arguments: "{}"}},
	}}
	result := NewExtractor(mock).Extract(context.Background(), "system", testHistory())

	if result.Args != nil {
		t.Error("unknown tool call should be ignored")
	}
	if result.Text != ExtractionApology {
		t.Errorf("empty completion should fall back to apology, got %q", result.Text)
	}
}
