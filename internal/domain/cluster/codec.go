package cluster

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/okian/tempoguard/internal/domain/model"
)

// Encode serializes a verdict for the wire.
func Encode(v model.ClusterVerdict) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode verdict: %w", err)
	}
	return b, nil
}

// Decode parses and validates a verdict received from the wire.
func Decode(b []byte) (model.ClusterVerdict, error) {
	var v model.ClusterVerdict
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrMalformedVerdict, err)
	}
	switch {
	case v.ParticipantID == "":
		return v, fmt.Errorf("%w: missing participant_id", ErrMalformedVerdict)
	case v.CheckID == "":
		return v, fmt.Errorf("%w: missing check_id", ErrMalformedVerdict)
	case v.OriginNodeID == "":
		return v, fmt.Errorf("%w: missing origin_node_id", ErrMalformedVerdict)
	case v.Kind != model.VerdictEscalation && v.Kind != model.VerdictReset:
		return v, fmt.Errorf("%w: unknown kind %q", ErrMalformedVerdict, v.Kind)
	case v.EscalationLevel < 0:
		return v, fmt.Errorf("%w: negative level", ErrMalformedVerdict)
	}
	return v, nil
}
