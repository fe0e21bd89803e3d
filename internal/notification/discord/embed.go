package discord

import (
	"time"
)

const (
	ColorSuccess = 0x00FF00
	ColorError   = 0xFF0000
	ColorInfo    = 0x0099FF
	ColorWarning = 0xFFA500
)

// 디스코드 임베드 길이 제한
const (
	maxDescriptionLen = 4096
	maxFieldValueLen  = 1024
)

const footerText = "Odyssey Margin Bot 🤖"

// WebhookMessage는 Discord 웹훅 본문입니다
type WebhookMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed는 알림 한 건에 해당하는 Discord 임베드입니다
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// newEmbed는 봇 푸터와 시각이 채워진 임베드를 만듭니다. 설명은 길이 제한에 맞게 잘립니다.
func newEmbed(title, description string, color int, at time.Time) *Embed {
	return &Embed{
		Title:       title,
		Description: truncate(description, maxDescriptionLen),
		Color:       color,
		Footer:      &EmbedFooter{Text: footerText},
		Timestamp:   at.Format(time.RFC3339),
	}
}

// AddField는 필드를 추가합니다
func (e *Embed) AddField(name, value string, inline bool) *Embed {
	e.Fields = append(e.Fields, EmbedField{Name: name, Value: truncate(value, maxFieldValueLen), Inline: inline})
	return e
}

// message는 임베드 하나로 된 웹훅 메시지를 만듭니다
func (e *Embed) message() WebhookMessage {
	return WebhookMessage{Embeds: []Embed{*e}}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
