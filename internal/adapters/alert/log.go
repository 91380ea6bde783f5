package alert

import (
	"context"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/pkg/logger"
)

// LogNotifier writes alerts to the process log.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Named("alert")}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, ev model.EscalationEvent) error {
	msg := "participant escalated"
	if ev.Flagged {
		msg = "participant flagged"
	}
	n.log.Warn(ctx, msg,
		logger.String("participant", ev.ParticipantID),
		logger.String("check", ev.CheckID),
		logger.Int("previous_level", ev.PreviousLevel),
		logger.Int("level", ev.NewLevel),
		logger.Float64("score", ev.Score),
		logger.String("evidence", ev.Evidence),
		logger.String("node", ev.NodeID))
	return nil
}
