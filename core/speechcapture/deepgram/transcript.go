package deepgram

import (
	"encoding/json"
	"fmt"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
)

// transcript folds deepgram result frames into the running transcript of
// one capture: every final segment plus the newest interim one.
type transcript struct {
	finals  []string
	interim string
}

// process reports the running transcript for every result frame that
// carried speech, even when the text is unchanged: a repeated interim still
// means the user is talking. Empty results are deepgram's silence frames.
func (t *transcript) process(msg []byte) (string, bool, error) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal deepgram message: %w", err)
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			return "", false, fmt.Errorf("failed to unmarshal deepgram results: %w", err)
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return "", false, nil
		}

		segment := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if msgResp.IsFinal {
			if segment != "" {
				t.finals = append(t.finals, segment)
			}
			t.interim = ""
		} else {
			t.interim = segment
		}
		if segment == "" {
			return "", false, nil
		}
		return t.String(), true, nil

	case api.TypeSpeechStartedResponse, api.TypeUtteranceEndResponse:
		// end of speech is decided by the quiet window, not by deepgram
		return "", false, nil

	default:
		return "", false, nil
	}
}

func (t *transcript) String() string {
	parts := t.finals
	if t.interim != "" {
		parts = append(parts[:len(parts):len(parts)], t.interim)
	}
	return strings.Join(parts, " ")
}
