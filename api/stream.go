package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Broker fans change notifications out to this instance's stream
// subscribers, keyed by owner email. A subscription is a disposable handle:
// Unsubscribe stops delivery with no further side effects.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers interest in changes to one owner's task list.
func (b *Broker) Subscribe(ownerEmail string) chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	set, ok := b.subs[ownerEmail]
	if !ok {
		set = make(map[chan struct{}]struct{})
		b.subs[ownerEmail] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe releases a handle returned by Subscribe.
func (b *Broker) Unsubscribe(ownerEmail string, ch chan struct{}) {
	b.mu.Lock()
	if set, ok := b.subs[ownerEmail]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, ownerEmail)
		}
	}
	b.mu.Unlock()
}

// Notify wakes every subscriber of ownerEmail. The signal carries no data:
// consumers refetch the whole list and replace their view, so coalescing
// back-to-back notifications into one delivery is correct.
func (b *Broker) Notify(ownerEmail string) {
	b.mu.Lock()
	for ch := range b.subs[ownerEmail] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

type changeEvent struct {
	OwnerEmail string `json:"ownerEmail"`
}

// RedisNotifier publishes task-list change events so every instance's broker
// hears about mutations, whichever instance served them.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *log.Logger
}

// NewRedisNotifier creates a notifier publishing on the given channel.
func NewRedisNotifier(client *redis.Client, channel string, logger *log.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// TasksChanged publishes a change event for ownerEmail. Publish failures are
// logged, not surfaced: the mutation already succeeded and streams converge
// on their next snapshot anyway.
func (n *RedisNotifier) TasksChanged(ctx context.Context, ownerEmail string) {
	data, err := json.Marshal(changeEvent{OwnerEmail: ownerEmail})
	if err != nil {
		return
	}
	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil && n.logger != nil {
		n.logger.WithFields(log.Fields{"owner": ownerEmail, "error": err.Error()}).Warn("publish task change")
	}
}

// SubscribeChanges consumes change events from redis and relays them to the
// local broker. It reconnects on channel closure and returns when ctx is
// cancelled.
func SubscribeChanges(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, broker *Broker) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				var ev changeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Errorf("unable to parse change event: %v", err)
					continue
				}
				broker.Notify(ev.OwnerEmail)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

// streamTasks serves the live owned-task list over SSE. Every event is the
// owner's entire current list, never a diff: the client replaces its view
// wholesale on each delivery.
func streamTasks(store Storage, auth Authenticator, broker *Broker) echo.HandlerFunc {
	return func(c echo.Context) error {
		// EventSource cannot set headers, so the token may arrive as a
		// query parameter instead.
		token := c.QueryParam("token")
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		viewer, err := auth.IdentityFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		ctx := c.Request().Context()
		ch := broker.Subscribe(viewer.Email)
		defer broker.Unsubscribe(viewer.Email, ch)
		for {
			tasks, err := store.ListTasksByOwner(ctx, viewer.Email)
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			data, err := json.Marshal(tasks)
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				return nil
			}
			if _, err := c.Response().Write(data); err != nil {
				return nil
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
			select {
			case <-ctx.Done():
				return nil
			case <-ch:
				continue
			}
		}
	}
}
