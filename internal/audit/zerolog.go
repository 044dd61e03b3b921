package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologSink writes audit events through a zerolog logger, one structured
// log line per event. Error-outcome events log at warn level, successes at
// info.
type ZerologSink struct {
	log zerolog.Logger
}

func NewZerologSink(log zerolog.Logger) *ZerologSink {
	return &ZerologSink{log: log}
}

func (s *ZerologSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}

	var ev *zerolog.Event
	if event.Success {
		ev = s.log.Info()
	} else {
		ev = s.log.Warn()
	}

	ev = ev.
		Time("timestamp", event.Timestamp).
		Str("event_type", event.EventType).
		Bool("success", event.Success)
	if event.Kind != "" {
		ev = ev.Str("principal_kind", event.Kind)
	}
	if event.PrincipalID != "" {
		ev = ev.Str("principal_id", event.PrincipalID)
	}
	if event.JTI != "" {
		ev = ev.Str("jti", event.JTI)
	}
	if event.IP != "" {
		ev = ev.Str("ip", event.IP)
	}
	if event.Error != "" {
		ev = ev.Str("error", event.Error)
	}
	for k, v := range event.Metadata {
		ev = ev.Str("meta_"+k, v)
	}

	ev.Msg("audit")
}
