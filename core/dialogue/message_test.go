package dialogue

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeInboundResponseWithAudio(t *testing.T) {
	frame, err := DecodeInbound([]byte(`{"type":"response","text":"Hi, how can I help?","audio":"AQID","replyTo":"m-1"}`))
	if err != nil {
		t.Fatalf("expected response frame to decode, got %v", err)
	}

	var got Response
	frame.Dispatch(Callbacks{OnResponse: func(response Response) { got = response }})

	if got.Text != "Hi, how can I help?" {
		t.Fatalf("expected response text, got %q", got.Text)
	}
	if !bytes.Equal(got.Audio, []byte{1, 2, 3}) {
		t.Fatalf("expected base64 audio to decode to [1 2 3], got %v", got.Audio)
	}
	if got.ReplyTo != "m-1" {
		t.Fatalf("expected replyTo m-1, got %q", got.ReplyTo)
	}
}

func TestDecodeInboundErrorForms(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
	}{
		{name: "error frame", payload: `{"type":"error","message":"rate limited"}`},
		{name: "bare string", payload: `"rate limited"`},
		{name: "error frame with text", payload: `{"type":"error","text":"rate limited"}`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			frame, err := DecodeInbound([]byte(testCase.payload))
			if err != nil {
				t.Fatalf("expected error frame to decode, got %v", err)
			}

			var got string
			frame.Dispatch(Callbacks{OnServiceError: func(message string) { got = message }})
			if got != "rate limited" {
				t.Fatalf("expected service error %q, got %q", "rate limited", got)
			}
		})
	}
}

func TestDecodeInboundRejectsUnknownFrames(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{"type":"ai_audio"}`)); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("expected unknown frame error, got %v", err)
	}
	if _, err := DecodeInbound([]byte(`{`)); err == nil {
		t.Fatalf("expected malformed json to fail")
	}
}

func TestOutboundFrameFlattensMessage(t *testing.T) {
	data, err := json.Marshal(NewOutboundFrame(Message{ID: "m-1", Text: "hello", IsUserInput: true, Model: "gpt-3.5-turbo"}))
	if err != nil {
		t.Fatalf("expected frame to marshal, got %v", err)
	}

	want := `{"type":"user_input","id":"m-1","text":"hello","isUserInput":true,"model":"gpt-3.5-turbo"}`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}
}

func TestConstructorsMarkMessageKind(t *testing.T) {
	prompt := NewSystemPrompt("You are a helpful assistant", "gpt-3.5-turbo")
	utterance := NewUtterance("what is two plus two", "gpt-3.5-turbo")

	if !prompt.IsSystemPrompt || prompt.IsUserInput {
		t.Fatalf("expected system prompt flags, got %+v", prompt)
	}
	if utterance.IsSystemPrompt || !utterance.IsUserInput {
		t.Fatalf("expected utterance flags, got %+v", utterance)
	}
	if prompt.ID == "" || prompt.ID == utterance.ID {
		t.Fatalf("expected distinct message ids, got %q and %q", prompt.ID, utterance.ID)
	}
}
