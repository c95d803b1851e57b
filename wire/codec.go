package wire

import (
	"encoding/json"

	"github.com/tonkit/wkbridge/errors"
)

// EncodeCall produces the wire form of one outgoing call. params may be
// nil, in which case the field is omitted entirely; a caller that means
// "null params" passes json.RawMessage("null").
func EncodeCall(id string, method Method, params json.RawMessage) (string, error) {
	if id == "" {
		return "", errors.InvalidInput(errors.StageEncode, "empty correlation id")
	}
	if !method.Valid() {
		return "", errors.New(errors.StageEncode, errors.KindInvalidInput).
			Method(string(method)).
			Detail("method outside the RPC surface").
			Build()
	}
	if len(params) > 0 && !json.Valid(params) {
		return "", errors.New(errors.StageEncode, errors.KindInvalidInput).
			Method(string(method)).
			Detail("params is not valid JSON").
			Build()
	}

	text, err := json.Marshal(Call{ID: id, Method: method, Params: params})
	if err != nil {
		return "", errors.New(errors.StageEncode, errors.KindInvalidInput).
			Method(string(method)).
			Cause(err).
			Build()
	}
	return string(text), nil
}

// rawMessage mirrors every field any kind can carry; DecodeMessage
// validates the combination after the single unmarshal.
type rawMessage struct {
	Kind   Kind            `json:"kind"`
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Err    *RemoteError    `json:"error"`
	Event  *Event          `json:"event"`
}

// DecodeMessage parses one inbound envelope. All failures are protocol
// errors; the function never panics regardless of input.
func DecodeMessage(text string) (*Message, error) {
	var raw rawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, errors.Protocol("malformed message JSON", err)
	}

	switch raw.Kind {
	case KindResponse:
		if raw.ID == "" {
			return nil, errors.Protocol("response without id", nil)
		}
		// A RawMessage is nil when the field was absent and "null" when it
		// carried an explicit null; both void results and omissions must be
		// told apart here.
		hasResult := len(raw.Result) > 0
		hasErr := raw.Err != nil
		if hasResult == hasErr {
			return nil, errors.Protocol("response must carry exactly one of result/error", nil)
		}
		m := &Message{Kind: KindResponse, ID: raw.ID, Err: raw.Err}
		if hasResult {
			m.Result = raw.Result
		}
		return m, nil

	case KindEvent:
		if raw.Event == nil {
			return nil, errors.Protocol("event message without event object", nil)
		}
		if !raw.Event.Type.Valid() {
			return nil, errors.Protocol("unknown event type "+string(raw.Event.Type), nil)
		}
		return &Message{Kind: KindEvent, Event: raw.Event}, nil

	case KindReady:
		return &Message{Kind: KindReady}, nil

	case "":
		return nil, errors.Protocol("message without kind", nil)

	default:
		return nil, errors.Protocol("unknown kind "+string(raw.Kind), nil)
	}
}
