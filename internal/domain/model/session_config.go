package model

import (
	"fmt"

	"chat-stream-engine/internal/domain"
)

// BaseConfig is the global default used by chats without an enabled override.
// APIKey is always taken from here.
type BaseConfig struct {
	APIKey            string
	APIURL            string
	Model             string
	Temperature       float64
	ContextMaxMessage int
	ContextMaxTokens  int
	ResponseMaxTokens int
}

// ChatSessionConfig holds the effective parameters for one turn.
type ChatSessionConfig struct {
	APIURL                 string
	Model                  string
	Temperature            float64
	ContextMaxMessageCount int
	ContextMaxTokens       int
	ResponseMaxTokens      int
}

// ResolveSessionConfig picks the chat's own options when the override is
// enabled and the base config otherwise.
func ResolveSessionConfig(info ChatInfo, base BaseConfig) (ChatSessionConfig, error) {
	switch opts := info.Options.(type) {
	case *GPTChatOptions:
		if opts == nil || !opts.Enabled {
			return fromBase(base), nil
		}
		return ChatSessionConfig{
			APIURL:                 opts.APIURL,
			Model:                  opts.Model,
			Temperature:            opts.Temperature,
			ContextMaxMessageCount: opts.ContextMaxMessage,
			ContextMaxTokens:       opts.ContextMaxTokens,
			ResponseMaxTokens:      opts.ResponseMaxTokens,
		}, nil
	case *DallEChatOptions, *GeminiChatOptions:
		return ChatSessionConfig{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedChatType, info.ChatType)
	case nil:
		if info.ChatType == ChatTypeChatGPT {
			return fromBase(base), nil
		}
		return ChatSessionConfig{}, domain.ErrChatConfigMissing
	default:
		return ChatSessionConfig{}, fmt.Errorf("%w: %T", domain.ErrUnsupportedChatType, opts)
	}
}

func fromBase(b BaseConfig) ChatSessionConfig {
	return ChatSessionConfig{
		APIURL:                 b.APIURL,
		Model:                  b.Model,
		Temperature:            b.Temperature,
		ContextMaxMessageCount: b.ContextMaxMessage,
		ContextMaxTokens:       b.ContextMaxTokens,
		ResponseMaxTokens:      b.ResponseMaxTokens,
	}
}
