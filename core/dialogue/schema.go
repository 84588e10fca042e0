package dialogue

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

type wireSchema struct {
	Outbound OutboundFrame `json:"outbound"`
	Inbound  InboundFrame  `json:"inbound"`
}

// Schema returns the JSON Schema of the outbound and inbound frames so a
// dialogue service can validate what it exchanges with this client.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(&wireSchema{})
	schema.Title = "ema-voiceloop dialogue frames"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dialogue schema: %w", err)
	}
	return data, nil
}
