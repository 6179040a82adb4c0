package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Inverseit/crm-whatsapp-service/internal/contact"
	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/Inverseit/crm-whatsapp-service/internal/store"
	"github.com/google/uuid"
)

// BotSenderID is recorded as the sender of every bot message.
const BotSenderID = "bot"

// Fixed client-facing texts.
const (
	// GreetingText opens every booking cycle.
	GreetingText = "Здравствуйте! Я бот салона красоты. Я помогу вам записаться на процедуру. Подскажите, пожалуйста, как к вам обращаться?"
	// ConfirmationText is appended to the reply once a booking is finalized.
	ConfirmationText = "Ваша заявка на запись принята. Администратор салона свяжется с вами в ближайшее время для подтверждения записи."
	// PersistenceApology is sent when the booking could not be saved.
	PersistenceApology = "Извините, произошла ошибка при сохранении вашей записи. Пожалуйста, попробуйте еще раз."
	// PhoneClarification asks the client to resend an unusable phone number.
	PhoneClarification = "Извините, я не смог распознать ваш номер телефона. Пожалуйста, отправьте его в международном формате, например +77001234567."
)

// Result is the reply the engine wants delivered for one inbound message.
type Result struct {
	Reply          models.Outbound
	To             string
	Platform       models.Platform
	ConversationID uuid.UUID
}

// Engine drives the booking conversation state machine.
type Engine struct {
	st               store.Store
	contacts         *contact.Normalizer
	prompts          *PromptBuilder
	extractor        ExtractionClient
	assembler        *Assembler
	finalizer        *Finalizer
	locks            *conversationLocks
	greetingTemplate string
}

// NewEngine wires the conversation engine. greetingTemplate, when non-empty,
// makes the WhatsApp greeting go out as a Business template of that name.
func NewEngine(st store.Store, contacts *contact.Normalizer, prompts *PromptBuilder, extractor ExtractionClient, assembler *Assembler, finalizer *Finalizer, greetingTemplate string) *Engine {
	return &Engine{
		st:               st,
		contacts:         contacts,
		prompts:          prompts,
		extractor:        extractor,
		assembler:        assembler,
		finalizer:        finalizer,
		locks:            newConversationLocks(),
		greetingTemplate: greetingTemplate,
	}
}

// Process handles one inbound message end to end and returns the reply to
// deliver. Collaborator failures that the client can act on are converted to
// fixed Russian texts instead of errors.
func (e *Engine) Process(ctx context.Context, in models.InboundMessage) (*Result, error) {
	info, err := e.contacts.Resolve(in)
	if err != nil {
		if errors.Is(err, models.ErrInvalidPhoneNumber) {
			if to := rawAddress(in); to != "" {
				slog.Warn("Engine.Process: unusable phone number, asking for clarification", "platform", in.Platform)
				return &Result{Reply: models.TextMessage(PhoneClarification), To: to, Platform: in.Platform}, nil
			}
		}
		return nil, fmt.Errorf("failed to resolve contact: %w", err)
	}

	conv, err := e.findOrCreateConversation(ctx, info)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(conv.ID)
	defer unlock()

	// Re-read under the lock: another webhook for the same client may have
	// advanced the state while we waited.
	conv, err = e.st.GetConversation(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload conversation: %w", err)
	}

	e.recordInbound(ctx, conv.ID, info, in)

	switch conv.EffectiveState() {
	case models.StateGreeting:
		return e.handleGreeting(ctx, conv, info)
	case models.StateCompleted:
		return e.handleCompleted(ctx, conv, info)
	case models.StateCollectingInfo:
		return e.handleCollectingInfo(ctx, conv, info)
	default:
		slog.Error("Engine.Process: unknown conversation state, treating as collecting_info", "state", conv.State, "conversation_id", conv.ID)
		return e.handleCollectingInfo(ctx, conv, info)
	}
}

// findOrCreateConversation looks the conversation up by platform identifiers,
// creating it in the greeting state on first contact and backfilling newly
// observed identifiers on subsequent ones.
func (e *Engine) findOrCreateConversation(ctx context.Context, info contact.Info) (*models.Conversation, error) {
	conv, err := e.st.FindConversation(ctx, store.ConversationLookup{
		Platform:       info.Platform,
		PhoneNumber:    info.PhoneNumber,
		WhatsAppID:     info.WhatsAppID,
		TelegramID:     info.TelegramID,
		TelegramChatID: info.TelegramChatID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}
	if conv == nil {
		conv = &models.Conversation{
			PhoneNumber:    info.PhoneNumber,
			WhatsAppID:     info.WhatsAppID,
			TelegramID:     info.TelegramID,
			TelegramChatID: info.TelegramChatID,
			State:          models.StateGreeting,
		}
		if err := e.st.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		slog.Info("Engine.findOrCreateConversation: conversation created", "conversation_id", conv.ID, "platform", info.Platform)
		return conv, nil
	}

	// Backfill identifiers observed for the first time; never overwrite.
	var upd store.ConversationUpdate
	changed := false
	if conv.PhoneNumber == "" && info.PhoneNumber != "" {
		upd.PhoneNumber = &info.PhoneNumber
		conv.PhoneNumber = info.PhoneNumber
		changed = true
	}
	if conv.WhatsAppID == "" && info.WhatsAppID != "" {
		upd.WhatsAppID = &info.WhatsAppID
		conv.WhatsAppID = info.WhatsAppID
		changed = true
	}
	if conv.TelegramID == "" && info.TelegramID != "" {
		upd.TelegramID = &info.TelegramID
		conv.TelegramID = info.TelegramID
		changed = true
	}
	if conv.TelegramChatID == "" && info.TelegramChatID != "" {
		upd.TelegramChatID = &info.TelegramChatID
		conv.TelegramChatID = info.TelegramChatID
		changed = true
	}
	if changed {
		if err := e.st.UpdateConversation(ctx, conv.ID, upd); err != nil {
			slog.Warn("Engine.findOrCreateConversation: identifier backfill failed", "error", err, "conversation_id", conv.ID)
		}
	}
	return conv, nil
}

func (e *Engine) handleGreeting(ctx context.Context, conv *models.Conversation, info contact.Info) (*Result, error) {
	state := models.StateCollectingInfo
	if err := e.st.UpdateConversation(ctx, conv.ID, store.ConversationUpdate{State: &state}); err != nil {
		return nil, fmt.Errorf("failed to advance conversation state: %w", err)
	}
	slog.Debug("Engine.handleGreeting: greeting sent", "conversation_id", conv.ID)
	return e.greetingResult(ctx, conv, info), nil
}

func (e *Engine) handleCompleted(ctx context.Context, conv *models.Conversation, info contact.Info) (*Result, error) {
	// A message after completion opens a fresh booking cycle.
	state := models.StateCollectingInfo
	complete := false
	if err := e.st.UpdateConversation(ctx, conv.ID, store.ConversationUpdate{State: &state, IsComplete: &complete}); err != nil {
		return nil, fmt.Errorf("failed to reset conversation: %w", err)
	}
	slog.Info("Engine.handleCompleted: conversation reset for a new booking", "conversation_id", conv.ID)
	return e.greetingResult(ctx, conv, info), nil
}

func (e *Engine) handleCollectingInfo(ctx context.Context, conv *models.Conversation, info contact.Info) (*Result, error) {
	history, err := e.st.ListOpenMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message history: %w", err)
	}

	systemPrompt := e.prompts.Build(info)
	extraction := e.extractor.Extract(ctx, systemPrompt, history)

	if extraction.Args == nil {
		return e.reply(ctx, conv, info, extraction.Text, false), nil
	}

	booking, err := e.assembler.Assemble(conv.ID, extraction.Args)
	if err != nil {
		if errors.Is(err, models.ErrInvalidPhoneNumber) {
			slog.Warn("Engine.handleCollectingInfo: extracted phone invalid", "error", err, "conversation_id", conv.ID)
			return e.reply(ctx, conv, info, PhoneClarification, false), nil
		}
		// Required fields missing means the model violated the tool contract.
		slog.Error("Engine.handleCollectingInfo: booking assembly failed", "error", err, "conversation_id", conv.ID)
		return e.reply(ctx, conv, info, ExtractionApology, false), nil
	}

	if err := e.finalizer.Finalize(ctx, conv, booking, info.Platform); err != nil {
		return e.reply(ctx, conv, info, PersistenceApology, false), nil
	}

	text := strings.TrimSpace(extraction.Text)
	if text != "" {
		text += "\n\n"
	}
	text += ConfirmationText
	// The window is already closed; keep the confirmation out of the next cycle.
	return e.reply(ctx, conv, info, text, true), nil
}

// greetingResult builds the greeting reply, as a Business template on
// WhatsApp when one is configured, and records it in the history.
func (e *Engine) greetingResult(ctx context.Context, conv *models.Conversation, info contact.Info) *Result {
	reply := models.TextMessage(GreetingText)
	if info.Platform == models.PlatformWhatsApp && e.greetingTemplate != "" {
		reply = models.TemplateMessage(e.greetingTemplate, nil)
	}
	e.recordBotMessage(ctx, conv.ID, info.Platform, GreetingText, false)
	return &Result{Reply: reply, To: info.DeliveryAddress(), Platform: info.Platform, ConversationID: conv.ID}
}

func (e *Engine) reply(ctx context.Context, conv *models.Conversation, info contact.Info, text string, closed bool) *Result {
	e.recordBotMessage(ctx, conv.ID, info.Platform, text, closed)
	return &Result{Reply: models.TextMessage(text), To: info.DeliveryAddress(), Platform: info.Platform, ConversationID: conv.ID}
}

// recordInbound persists the raw inbound message before any interpretation.
func (e *Engine) recordInbound(ctx context.Context, conversationID uuid.UUID, info contact.Info, in models.InboundMessage) {
	msg := &models.Message{
		ConversationID: conversationID,
		Content:        in.Content,
		MessageType:    in.MessageType,
		SenderID:       info.SenderID(),
		Platform:       in.Platform,
	}
	if err := e.st.AddMessage(ctx, msg); err != nil {
		slog.Error("Engine.recordInbound: failed to persist inbound message", "error", err, "conversation_id", conversationID)
	}
}

func (e *Engine) recordBotMessage(ctx context.Context, conversationID uuid.UUID, platform models.Platform, content string, closed bool) {
	msg := &models.Message{
		ConversationID: conversationID,
		Content:        content,
		SenderID:       BotSenderID,
		IsFromBot:      true,
		Platform:       platform,
		IsComplete:     closed,
	}
	if err := e.st.AddMessage(ctx, msg); err != nil {
		slog.Error("Engine.recordBotMessage: failed to persist bot message", "error", err, "conversation_id", conversationID)
	}
}

// rawAddress returns a best-effort delivery address for replies sent before
// a contact could be normalized.
func rawAddress(in models.InboundMessage) string {
	switch in.Platform {
	case models.PlatformTelegram:
		return in.TelegramChatID
	case models.PlatformWhatsApp:
		if in.PhoneNumber != "" {
			return in.PhoneNumber
		}
		return in.WhatsAppID
	default:
		return in.PhoneNumber
	}
}
