package models

import "testing"

func TestIsValidPlatform(t *testing.T) {
	valid := []Platform{PlatformWhatsApp, PlatformTelegram, PlatformGeneric}
	for _, p := range valid {
		if !IsValidPlatform(p) {
			t.Errorf("expected platform %q to be valid", p)
		}
	}
	if IsValidPlatform("viber") {
		t.Error("expected unknown platform to be invalid")
	}
	if IsValidPlatform("") {
		t.Error("expected empty platform to be invalid")
	}
}

func TestIsValidConversationState(t *testing.T) {
	valid := []ConversationState{StateGreeting, StateCollectingInfo, StateConfirming, StateCompleted}
	for _, s := range valid {
		if !IsValidConversationState(s) {
			t.Errorf("expected state %q to be valid", s)
		}
	}
	if IsValidConversationState("archived") {
		t.Error("expected unknown state to be invalid")
	}
}

func TestEffectiveState(t *testing.T) {
	cases := []struct {
		in   ConversationState
		want ConversationState
	}{
		{StateGreeting, StateGreeting},
		{StateCollectingInfo, StateCollectingInfo},
		{StateConfirming, StateCollectingInfo},
		{StateCompleted, StateCompleted},
	}
	for _, c := range cases {
		conv := Conversation{State: c.in}
		if got := conv.EffectiveState(); got != c.want {
			t.Errorf("EffectiveState(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	if v, ok := ParseTimeOfDay("morning"); !ok || v != TimeOfDayMorning {
		t.Errorf("expected morning to parse, got %q ok=%v", v, ok)
	}
	if _, ok := ParseTimeOfDay("noon"); ok {
		t.Error("expected unknown time of day to be rejected")
	}
	if _, ok := ParseTimeOfDay(""); ok {
		t.Error("expected empty time of day to be rejected")
	}
}

func TestParseContactMethod(t *testing.T) {
	valid := []string{"phone_call", "whatsapp_message", "telegram_message"}
	for _, s := range valid {
		if _, ok := ParseContactMethod(s); !ok {
			t.Errorf("expected contact method %q to parse", s)
		}
	}
	if _, ok := ParseContactMethod("email"); ok {
		t.Error("expected unknown contact method to be rejected")
	}
}

func TestOutboundConstructors(t *testing.T) {
	txt := TextMessage("привет")
	if txt.Type != OutboundText || txt.Text != "привет" {
		t.Errorf("unexpected text outbound: %+v", txt)
	}
	tpl := TemplateMessage("greeting", map[string]string{"name": "Anna"})
	if tpl.Type != OutboundTemplate || tpl.TemplateName != "greeting" {
		t.Errorf("unexpected template outbound: %+v", tpl)
	}
	if tpl.TemplateData["name"] != "Anna" {
		t.Errorf("template data lost: %+v", tpl.TemplateData)
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	resp := Success([]int{1, 2})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("expected ok status, got %q", resp.Status)
	}
	errResp := Error("boom")
	if errResp.Status != string(APIStatusError) || errResp.Message != "boom" {
		t.Errorf("unexpected error response: %+v", errResp)
	}
}
