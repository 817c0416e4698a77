package session

import "time"

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one chat bubble. Messages are never edited after creation.
type Message struct {
	Text   string
	Sender Sender
	At     time.Time
}

func UserMessage(text string) Message {
	return Message{Text: text, Sender: SenderUser, At: time.Now()}
}

func AssistantMessage(text string) Message {
	return Message{Text: text, Sender: SenderAssistant, At: time.Now()}
}
