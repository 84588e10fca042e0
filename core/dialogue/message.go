// Package dialogue defines the event contract of the channel to the remote
// dialogue service and the JSON frames it is carried in.
package dialogue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Message is one outbound prompt or utterance.
type Message struct {
	// ID lets the service correlate its reply through Response.ReplyTo.
	ID             string `json:"id,omitempty" jsonschema:"description=Message identifier echoed back as replyTo"`
	Text           string `json:"text" jsonschema:"required"`
	IsSystemPrompt bool   `json:"isSystemPrompt,omitempty"`
	IsUserInput    bool   `json:"isUserInput,omitempty"`
	Model          string `json:"model,omitempty" jsonschema:"example=gpt-3.5-turbo"`
}

func NewSystemPrompt(text, model string) Message {
	return Message{ID: uuid.NewString(), Text: text, IsSystemPrompt: true, Model: model}
}

func NewUtterance(text, model string) Message {
	return Message{ID: uuid.NewString(), Text: text, IsUserInput: true, Model: model}
}

// Response is the service's reply to the outstanding message. Audio is an
// optional encoded clip, WAV unless the transport says otherwise.
type Response struct {
	Text    string
	Audio   []byte
	ReplyTo string
}

func (r Response) HasAudio() bool { return len(r.Audio) > 0 }

type FrameType string

const (
	FrameTypeMessage  FrameType = "user_input"
	FrameTypeResponse FrameType = "response"
	FrameTypeError    FrameType = "error"
)

// OutboundFrame is the JSON envelope a Message travels in.
type OutboundFrame struct {
	Type FrameType `json:"type" jsonschema:"enum=user_input"`
	Message
}

func NewOutboundFrame(message Message) OutboundFrame {
	return OutboundFrame{Type: FrameTypeMessage, Message: message}
}

// InboundFrame is the JSON envelope of everything the service sends back.
// Audio is base64 on the wire.
type InboundFrame struct {
	Type    FrameType `json:"type" jsonschema:"enum=response,enum=error"`
	Text    string    `json:"text,omitempty"`
	Audio   []byte    `json:"audio,omitempty" jsonschema:"contentEncoding=base64"`
	ReplyTo string    `json:"replyTo,omitempty"`
	Message string    `json:"message,omitempty" jsonschema:"description=Error message when type is error"`
}

var ErrUnknownFrame = errors.New("unknown dialogue frame")

// DecodeInbound parses one inbound frame. A bare JSON string is treated as
// an error frame.
func DecodeInbound(data []byte) (InboundFrame, error) {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		return InboundFrame{Type: FrameTypeError, Message: bare}, nil
	}

	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return InboundFrame{}, fmt.Errorf("failed to decode dialogue frame: %w", err)
	}

	switch frame.Type {
	case FrameTypeResponse, FrameTypeError:
		return frame, nil
	default:
		return InboundFrame{}, fmt.Errorf("%w: %q", ErrUnknownFrame, frame.Type)
	}
}

// Dispatch delivers a decoded frame to the matching callback.
func (f InboundFrame) Dispatch(callbacks Callbacks) {
	switch f.Type {
	case FrameTypeResponse:
		callbacks.response(Response{Text: f.Text, Audio: f.Audio, ReplyTo: f.ReplyTo})
	case FrameTypeError:
		message := f.Message
		if message == "" {
			message = f.Text
		}
		callbacks.serviceError(message)
	}
}
