package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Channel is the NOTIFY channel the schema triggers publish catalog row
// changes on. One channel covers all catalog tables; the table name rides
// inside the payload.
const Channel = "catalog_changes"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
)

// PQFeed is a Feed over Postgres LISTEN/NOTIFY. The row-level triggers
// installed by the schema bootstrap publish each change as a JSON Event on
// the catalog channel, in commit order per table.
type PQFeed struct {
	dsn     string
	channel string
	logger  *zap.SugaredLogger

	listener *pq.Listener
}

func NewPQFeed(dsn, channel string, logger *zap.SugaredLogger) *PQFeed {
	return &PQFeed{dsn: dsn, channel: channel, logger: logger}
}

func (f *PQFeed) Open(ctx context.Context) (<-chan Event, error) {
	// A reopen without an intervening Close must not leak the old
	// listener connection.
	if f.listener != nil {
		f.listener.Close()
		f.listener = nil
	}

	listener := pq.NewListener(f.dsn, minReconnectInterval, maxReconnectInterval,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				f.logger.Warnw("pq listener event", "event", event, "error", err)
			}
		})

	if err := listener.Listen(f.channel); err != nil {
		listener.Close()
		return nil, err
	}
	f.listener = listener

	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// A nil notification marks a reconnect; events may
				// have been missed, so tell consumers to resync.
				if n == nil {
					f.logger.Infow("change feed reconnected", "channel", f.channel)
					select {
					case out <- Event{Type: EventResync}:
					case <-ctx.Done():
						return
					}
					continue
				}

				var ev Event
				if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
					f.logger.Errorw("undecodable change payload",
						"channel", n.Channel, "error", err)
					continue
				}

				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (f *PQFeed) Close() error {
	if f.listener == nil {
		return nil
	}
	err := f.listener.Close()
	f.listener = nil
	return err
}
