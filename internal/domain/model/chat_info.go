package model

import (
	"encoding/json"
	"fmt"
)

type ChatType string

const (
	ChatTypeChatGPT ChatType = "chat_gpt"
	ChatTypeDallE   ChatType = "dall_e"
	ChatTypeGemini  ChatType = "gemini"
)

// ChatOptions is the per-chat override block. The concrete type always
// matches ChatInfo.ChatType.
type ChatOptions interface {
	chatType() ChatType
	// OverrideEnabled reports whether the chat uses its own options
	// instead of the global base config.
	OverrideEnabled() bool
}

// GPTChatOptions overrides the completions parameters for one chat.
type GPTChatOptions struct {
	Enabled           bool    `json:"enabled"`
	APIURL            string  `json:"apiUrl"`
	Model             string  `json:"model"`
	Temperature       float64 `json:"temperature"`
	ContextMaxMessage int     `json:"contextMaxMessage"`
	ContextMaxTokens  int     `json:"contextMaxTokens"`
	ResponseMaxTokens int     `json:"responseMaxTokens"`
}

func (*GPTChatOptions) chatType() ChatType      { return ChatTypeChatGPT }
func (o *GPTChatOptions) OverrideEnabled() bool { return o.Enabled }

type DallEChatOptions struct {
	Enabled bool   `json:"enabled"`
	APIURL  string `json:"apiUrl"`
	Model   string `json:"model"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Count   int    `json:"n"`
}

func (*DallEChatOptions) chatType() ChatType      { return ChatTypeDallE }
func (o *DallEChatOptions) OverrideEnabled() bool { return o.Enabled }

type GeminiChatOptions struct {
	Enabled           bool    `json:"enabled"`
	APIURL            string  `json:"apiUrl"`
	Model             string  `json:"model"`
	Temperature       float64 `json:"temperature"`
	ContextMaxMessage int     `json:"contextMaxMessage"`
	ContextMaxTokens  int     `json:"contextMaxTokens"`
	ResponseMaxTokens int     `json:"responseMaxTokens"`
}

func (*GeminiChatOptions) chatType() ChatType      { return ChatTypeGemini }
func (o *GeminiChatOptions) OverrideEnabled() bool { return o.Enabled }

// ChatInfo is one chat definition. Its tabs live in the conversation store.
type ChatInfo struct {
	ID       string
	Name     string
	Prompt   string
	ChatType ChatType
	Options  ChatOptions
}

type chatInfoJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Prompt   string          `json:"prompt"`
	ChatType ChatType        `json:"chatType"`
	Options  json.RawMessage `json:"options"`
}

func (c ChatInfo) MarshalJSON() ([]byte, error) {
	opts, err := json.Marshal(c.Options)
	if err != nil {
		return nil, err
	}
	return json.Marshal(chatInfoJSON{
		ID:       c.ID,
		Name:     c.Name,
		Prompt:   c.Prompt,
		ChatType: c.ChatType,
		Options:  opts,
	})
}

func (c *ChatInfo) UnmarshalJSON(b []byte) error {
	var raw chatInfoJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	opts, err := DecodeChatOptions(raw.ChatType, raw.Options)
	if err != nil {
		return err
	}
	*c = ChatInfo{ID: raw.ID, Name: raw.Name, Prompt: raw.Prompt, ChatType: raw.ChatType, Options: opts}
	return nil
}

// DecodeChatOptions decodes the options block for the given chat type.
// Empty or null input yields zero-valued options of the right type.
func DecodeChatOptions(t ChatType, raw []byte) (ChatOptions, error) {
	var opts ChatOptions
	switch t {
	case ChatTypeChatGPT:
		opts = &GPTChatOptions{}
	case ChatTypeDallE:
		opts = &DallEChatOptions{}
	case ChatTypeGemini:
		opts = &GeminiChatOptions{}
	default:
		return nil, fmt.Errorf("unknown chat type %q", t)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return opts, nil
	}
	if err := json.Unmarshal(raw, opts); err != nil {
		return nil, fmt.Errorf("decode %s options: %w", t, err)
	}
	return opts, nil
}

// DefaultChats returns the built-in chat list.
func DefaultChats() []ChatInfo {
	return []ChatInfo{
		{
			ID:       "default",
			Name:     "Default Chat",
			Prompt:   "You are a helpful assistant.",
			ChatType: ChatTypeChatGPT,
			Options: &GPTChatOptions{
				Enabled:           false,
				APIURL:            "https://api.openai.com/",
				Model:             "gpt-3.5-turbo",
				Temperature:       0.7,
				ContextMaxMessage: 1,
				ContextMaxTokens:  2048,
			},
		},
		{
			ID:       "default1",
			Name:     "Default Chat GPT-4",
			Prompt:   "You are a helpful assistant. Please ask me anything.",
			ChatType: ChatTypeChatGPT,
			Options: &GPTChatOptions{
				Enabled:           true,
				APIURL:            "https://api.openai.com/",
				Model:             "gpt-4-1106-preview",
				Temperature:       0.7,
				ContextMaxMessage: 1,
				ContextMaxTokens:  2048,
			},
		},
	}
}
