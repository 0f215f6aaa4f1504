package alert

import (
	"context"

	domalert "github.com/kailas-cloud/planguard/internal/domain/alert"
)

// Sink delivers one alert. Retries, if any, are the sink's business.
type Sink interface {
	Send(ctx context.Context, a domalert.Alert) error
}

// named is implemented by sinks that label their delivery metrics.
type named interface {
	Name() string
}

func sinkName(s Sink) string {
	if n, ok := s.(named); ok {
		return n.Name()
	}
	return "custom"
}
