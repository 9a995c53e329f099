// Package stream decodes the "data:" framed chat completion stream.
//
// Frames are split per network chunk. A JSON payload that straddles two
// chunks is not reassembled and fails with *domain.FrameParseError; servers
// speaking this protocol flush whole frames, and the behavior is kept as is
// until cross-chunk buffering is explicitly wanted.
package stream

import (
	"encoding/json"
	"strings"

	"chat-stream-engine/internal/domain"
)

const (
	FrameDelimiter = "data:"
	DoneSentinel   = "[DONE]"
)

type EventKind int

const (
	EventTextDelta EventKind = iota
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text_delta"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one decoded protocol event. Content is set for EventTextDelta.
type Event struct {
	Kind    EventKind
	Content string
}

func TextDelta(content string) Event { return Event{Kind: EventTextDelta, Content: content} }
func Done() Event                    { return Event{Kind: EventDone} }

// chunkPayload is the subset of a completion chunk the parser reads.
type chunkPayload struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Parser turns raw body chunks into events. It is not safe for concurrent
// use; one parser belongs to one stream.
type Parser struct {
	done bool
}

func NewParser() *Parser { return &Parser{} }

// Finished reports whether the done sentinel has been seen.
func (p *Parser) Finished() bool { return p.done }

// Parse decodes one chunk. Events decoded before an error in the same chunk
// are returned alongside it. After the done sentinel every call returns nothing.
func (p *Parser) Parse(chunk []byte) ([]Event, error) {
	if p.done || len(chunk) == 0 {
		return nil, nil
	}
	var events []Event
	for _, frame := range strings.Split(string(chunk), FrameDelimiter) {
		trimmed := strings.TrimSpace(frame)
		if trimmed == "" {
			continue
		}
		if trimmed == DoneSentinel {
			p.done = true
			return append(events, Done()), nil
		}

		var payload chunkPayload
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return events, &domain.FrameParseError{RawFrame: frame, Cause: err}
		}
		if payload.Error != nil {
			return events, &domain.UpstreamError{Message: payload.Error.Message}
		}
		for _, choice := range payload.Choices {
			if choice.Delta.Content != "" {
				events = append(events, TextDelta(choice.Delta.Content))
			}
		}
	}
	return events, nil
}
