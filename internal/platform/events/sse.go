package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/metrics"
)

// KeepAlive is the idle interval after which a ping is sent.
const KeepAlive = 30 * time.Second

// StreamHandler serves queue events as Server-Sent Events.
type StreamHandler struct {
	bus       *Bus
	logger    zerolog.Logger
	metrics   *metrics.EventMetrics
	keepAlive time.Duration
}

func NewStreamHandler(bus *Bus, logger zerolog.Logger, m *metrics.EventMetrics) *StreamHandler {
	return &StreamHandler{bus: bus, logger: logger, metrics: m, keepAlive: KeepAlive}
}

// channelFromQuery resolves ?doctor_id= to a channel name.
func channelFromQuery(c echo.Context) (string, error) {
	raw := c.QueryParam("doctor_id")
	if raw == "" {
		return AllChannel, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperr.Validation("invalid doctor_id")
	}
	return DoctorChannel(&id), nil
}

// SSE streams events until the client disconnects.
func (h *StreamHandler) SSE(c echo.Context) error {
	channel, err := channelFromQuery(c)
	if err != nil {
		return err
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	mb := h.bus.Subscribe(channel)
	h.metrics.SubscriberOpened("sse")
	defer func() {
		h.bus.Unsubscribe(channel, mb)
		h.metrics.SubscriberClosed("sse")
	}()

	ctx := c.Request().Context()
	idle := time.NewTimer(h.keepAlive)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-mb.Ready():
			for _, ev := range mb.Drain() {
				if err := writeEvent(w, ev); err != nil {
					h.logger.Debug().Err(err).Str("channel", channel).Msg("sse write failed")
					return nil
				}
			}
			w.Flush()
		case <-idle.C:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: \n\n", TypePing); err != nil {
				return nil
			}
			w.Flush()
		}
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(h.keepAlive)
	}
}

func writeEvent(w *echo.Response, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
