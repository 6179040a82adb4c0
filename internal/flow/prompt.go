package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/Inverseit/crm-whatsapp-service/internal/contact"
	"github.com/Inverseit/crm-whatsapp-service/internal/models"
)

// bookingWindowDays is how many days ahead the bot offers appointments.
const bookingWindowDays = 7

var russianWeekdays = [...]string{
	"воскресенье", "понедельник", "вторник", "среда", "четверг", "пятница", "суббота",
}

var russianMonths = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// PromptBuilder assembles the per-message system prompt. Prompts are rebuilt
// on every call so the date window always reflects the current day.
type PromptBuilder struct {
	now func() time.Time
}

// NewPromptBuilder creates a PromptBuilder using the system clock.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{now: time.Now}
}

// NewPromptBuilderWithClock creates a PromptBuilder with a custom clock.
func NewPromptBuilderWithClock(now func() time.Time) *PromptBuilder {
	return &PromptBuilder{now: now}
}

// Build renders the system prompt for one contact on one platform.
func (b *PromptBuilder) Build(info contact.Info) string {
	var sb strings.Builder

	switch info.Platform {
	case models.PlatformTelegram:
		sb.WriteString("You are a beauty salon booking assistant for a Telegram bot. Your goal is to make the booking process smooth and efficient.\n")
	case models.PlatformWhatsApp:
		sb.WriteString("You are a beauty salon booking assistant for WhatsApp. Your goal is to make the booking process smooth and efficient.\n")
	default:
		sb.WriteString("You are a beauty salon booking assistant. Your goal is to make the booking process smooth and efficient.\n")
	}
	sb.WriteString(`FOR ANY REQUEST THAT IS NOT RELATED TO A BEAUTY SALON APPOINTMENT, RESPOND WITH "Извините, я могу помочь только с записью в салон красоты."
NEVER PERFORM ANY REQUEST THAT IS NOT RELATED TO A BEAUTY SALON APPOINTMENT.
NEVER ASK FOR SENSITIVE INFORMATION SUCH AS CREDIT CARD DETAILS OR SOCIAL SECURITY NUMBERS.

`)

	b.writeDateWindow(&sb)
	writeInfoSection(&sb, info)
	writePlatformSection(&sb, info.Platform)

	sb.WriteString(`COMMUNICATION STYLE:
- Always respond in Russian
- Be polite, friendly and professional
- Use short, concise messages
- Ask one question at a time when possible
- Always follow up on incomplete information

PROCESS:
1. Greet them personally using their name if available
2. Ask about desired service with details
3. Determine preferred contact method and collect phone number if needed
4. Collect appointment details (date/time)
5. Ask for any additional notes or special requests
6. Summarize all information and ask for confirmation
7. Once the client confirms, use the collect_booking_info function to submit the data

When all information is collected AND confirmed, use the collect_booking_info function to submit the data.
`)
	return sb.String()
}

// writeDateWindow renders today plus the next days the salon accepts
// bookings for, so the model can resolve relative dates like "завтра".
func (b *PromptBuilder) writeDateWindow(sb *strings.Builder) {
	today := b.now()
	fmt.Fprintf(sb, "CURRENT DATE CONTEXT:\nСегодня %s, %s.\nБлижайшие даты для записи:\n",
		formatRussianDate(today), russianWeekdays[today.Weekday()])
	for i := 0; i < bookingWindowDays; i++ {
		day := today.AddDate(0, 0, i)
		fmt.Fprintf(sb, "- %s, %s (%s)\n", russianWeekdays[day.Weekday()], formatRussianDate(day), day.Format("2006-01-02"))
	}
	sb.WriteString("Resolve relative dates (сегодня, завтра, в пятницу) against this list and submit booking_date in YYYY-MM-DD format.\n\n")
}

func writeInfoSection(sb *strings.Builder, info contact.Info) {
	sb.WriteString("INFORMATION TO COLLECT:\n1. Client's name\n")
	switch info.Platform {
	case models.PlatformTelegram:
		fmt.Fprintf(sb, "   - Use their Telegram name as default: %s %s (Telegram username: @%s)\n", info.FirstName, info.LastName, info.Username)
		sb.WriteString(`2. Contact details:
   - Ask for their phone number for salon staff to contact them
   - Ask if they prefer phone calls or Telegram messages
   - Best time to contact them (morning: 9:00-12:00, afternoon: 12:00-17:00, evening: 17:00-21:00)
`)
	case models.PlatformWhatsApp:
		fmt.Fprintf(sb, "   - Use their WhatsApp profile name as default if available: %s\n", info.ProfileName)
		fmt.Fprintf(sb, `2. Contact details:
   - Their WhatsApp number is already available: %s
   - Ask if they prefer phone calls or WhatsApp messages
   - Ask if they want to be contacted on this WhatsApp number or a different number
   - Best time to contact them (morning: 9:00-12:00, afternoon: 12:00-17:00, evening: 17:00-21:00)
`, contact.FormatForDisplay(info.PhoneNumber))
	default:
		fmt.Fprintf(sb, `2. Contact details:
   - Their phone number is already available: %s
   - Ask how they prefer to be contacted
   - Best time to contact them (morning: 9:00-12:00, afternoon: 12:00-17:00, evening: 17:00-21:00)
`, contact.FormatForDisplay(info.PhoneNumber))
	}
	sb.WriteString(`3. Service details (be specific about the exact service needed)
4. Preferred date
5. Preferred time (exact time or time of day preference)
6. Additional notes or special requests (allergies, preferences, etc.)

`)
}

func writePlatformSection(sb *strings.Builder, platform models.Platform) {
	switch platform {
	case models.PlatformTelegram:
		sb.WriteString(`TELEGRAM-SPECIFIC INSTRUCTIONS:
- Always use their Telegram first name when addressing them
- When asking for a phone number, remind them they can share it via Telegram's "Share Contact" button
- For preferred contact method, offer "phone_call" or "telegram_message" as options
- Inform them they'll receive booking confirmation via Telegram

`)
	case models.PlatformWhatsApp:
		sb.WriteString(`WHATSAPP-SPECIFIC INSTRUCTIONS:
- When asking for contact preference, default to WhatsApp since you're already chatting there
- For preferred contact method, offer "phone_call" or "whatsapp_message" as options
- Inform them they'll receive booking confirmation via WhatsApp

`)
	default:
		sb.WriteString(`CHANNEL INSTRUCTIONS:
- For preferred contact method, offer "phone_call" or "whatsapp_message" as options
- Inform them the salon administrator will contact them to confirm the booking

`)
	}
}

func formatRussianDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), russianMonths[t.Month()-1], t.Year())
}
