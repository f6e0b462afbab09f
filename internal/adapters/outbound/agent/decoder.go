package agent

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"

	"github.com/RG-Partners/soraai-chat/internal/bridge"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/goccy/go-json"
)

// wireEvent is one NDJSON line of an agent stream.
type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

var errUnknownEvent = errors.New("unknown agent event")

// decodeEvent validates a line once, at the boundary, into a bridge event.
func decodeEvent(line []byte) (bridge.Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(line, &wire); err != nil {
		return nil, fmt.Errorf("malformed agent event: %w", err)
	}

	switch wire.Type {
	case "response", "message":
		var text string
		if err := json.Unmarshal(wire.Data, &text); err != nil {
			return nil, fmt.Errorf("malformed %s event: %w", wire.Type, err)
		}

		return bridge.Fragment{Text: text}, nil

	case "sources":
		var citations []model.Citation
		if len(wire.Data) > 0 {
			if err := json.Unmarshal(wire.Data, &citations); err != nil {
				return nil, fmt.Errorf("malformed sources event: %w", err)
			}
		}

		return bridge.Sources{Citations: citations}, nil

	case "end", "done":
		return bridge.Done{}, nil

	case "error":
		var detail any
		if len(wire.Data) > 0 {
			if err := json.Unmarshal(wire.Data, &detail); err != nil {
				detail = string(wire.Data)
			}
		}

		return bridge.Failed{Detail: detail}, nil

	default:
		return nil, fmt.Errorf("%w %q", errUnknownEvent, wire.Type)
	}
}

// pump forwards the response body into src until a terminal event, the end
// of the body or detach.
func (c *Client) pump(resp *http.Response, src *stream) {
	defer src.cancel()
	defer resp.Body.Close()
	defer src.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), max(c.maxLineBytes, 64*1024))

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		ev, err := decodeEvent(line)
		if errors.Is(err, errUnknownEvent) {
			c.logger.Debug().Err(err).Msg("skipping agent event")

			continue
		}

		if err != nil {
			src.Emit(bridge.Failed{Detail: map[string]any{"message": err.Error()}})

			return
		}

		if !src.Emit(ev) {
			return
		}

		switch ev.(type) {
		case bridge.Done, bridge.Failed:
			return
		}
	}

	select {
	case <-src.Detached():
		return
	default:
	}

	if err := scanner.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("agent stream broke off")
		src.Emit(bridge.Failed{Detail: map[string]any{"message": "agent stream interrupted"}})
	}
}
