// Package flow implements the booking conversation engine.
package flow

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// ToolNameCollectBookingInfo is the function the model calls once the client
// has confirmed their booking details in chat.
const ToolNameCollectBookingInfo = "collect_booking_info"

// BookingInfoTool returns the OpenAI tool definition for submitting collected
// booking information.
func BookingInfoTool() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        ToolNameCollectBookingInfo,
			Description: openai.String("Collect booking information for beauty salon appointment after client confirmation"),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"client_name": map[string]interface{}{
						"type":        "string",
						"description": "Client's full name",
					},
					"phone": map[string]interface{}{
						"type":        "string",
						"description": "Client's phone number for communication",
					},
					"use_phone_for_whatsapp": map[string]interface{}{
						"type":        "boolean",
						"description": "Whether to use the same phone number for WhatsApp",
					},
					"whatsapp": map[string]interface{}{
						"type":        "string",
						"description": "Client's WhatsApp number if different from phone",
					},
					"preferred_contact_method": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"phone_call", "whatsapp_message", "telegram_message"},
						"description": "Preferred contact method: phone call, WhatsApp message, or Telegram message",
					},
					"preferred_contact_time": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"morning", "afternoon", "evening"},
						"description": "Preferred contact time: morning (9:00-12:00), afternoon (12:00-17:00), evening (17:00-21:00)",
					},
					"service_description": map[string]interface{}{
						"type":        "string",
						"description": "Detailed description of the service requested by the client",
					},
					"booking_date": map[string]interface{}{
						"type":        "string",
						"description": "Appointment date in YYYY-MM-DD or DD.MM.YYYY format",
					},
					"booking_time": map[string]interface{}{
						"type":        "string",
						"description": "Appointment time in HH:MM format",
					},
					"time_of_day": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"morning", "afternoon", "evening"},
						"description": "Preferred time of day if specific time is not specified",
					},
					"additional_notes": map[string]interface{}{
						"type":        "string",
						"description": "Additional information or special requests from the client (allergies, preferences, etc.)",
					},
				},
				"required": []string{"client_name", "phone", "preferred_contact_method", "service_description"},
			},
		},
	}
}
