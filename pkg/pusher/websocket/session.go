package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iota-community/workshops/pkg/core"
	"github.com/iota-community/workshops/pkg/pusher/events"
	"github.com/iota-community/workshops/pkg/pusher/metrics"
	"github.com/iota-community/workshops/pkg/pusher/sources"
)

const subscriptionLimit = 1000 // limitation of subscription by connection

// allAuthors is the subscription key used when a client follows every author.
const allAuthors = "*"

// session is a light-weight implementation of JSON-RPC protocol over an HTTP connection from a client.
type session struct {
	logger            *zap.Logger
	conn              *websocket.Conn
	postSource        sources.PostSource
	eventCh           chan event
	postSubscriptions map[string]sources.CancelFn
	pingInterval      time.Duration
	subscriptionLimit int
	done              chan struct{}
}

type event struct {
	Name   events.Name
	Method string
	Params []byte
}

func newSession(logger *zap.Logger, postSource sources.PostSource, conn *websocket.Conn) *session {
	return &session{
		logger:            logger,
		eventCh:           make(chan event, 1000),
		conn:              conn,
		postSource:        postSource,
		postSubscriptions: map[string]sources.CancelFn{},
		pingInterval:      5 * time.Second,
		subscriptionLimit: subscriptionLimit,
		done:              make(chan struct{}),
	}
}

func (s *session) cancel() {
	for _, cancelFn := range s.postSubscriptions {
		cancelFn()
	}
}

func (s *session) Run(ctx context.Context) chan JsonRPCRequest {
	requestCh := make(chan JsonRPCRequest)
	go func() {
		defer close(s.done)
		defer s.cancel()

		for {
			var err error
			select {
			case <-ctx.Done():
				return
			case e := <-s.eventCh:
				response := JsonRPCResponse{
					JSONRPC: "2.0",
					Method:  e.Method,
					Params:  e.Params,
				}
				metrics.WebsocketEventSent(e.Name)
				err = s.conn.WriteJSON(response)
			case request := <-requestCh:
				var response string
				switch request.Method {
				case "subscribe_posts":
					response = s.subscribeToPosts(request.Params)
				case "unsubscribe_posts":
					response = s.unsubscribeFromPosts(request.Params)
				default:
					response = fmt.Sprintf("unknown method '%v'", request.Method)
				}
				err = s.writeResponse(response, request)
			case <-time.After(s.pingInterval):
				metrics.WebsocketEventSent(events.PingEvent)
				err = s.conn.WriteMessage(websocket.PingMessage, []byte{})
			}
			if err != nil {
				s.logger.Error("websocket session failed", zap.Error(err))
				return
			}
		}
	}()
	return requestCh
}

func (s *session) sendEvent(e event) {
	select {
	case s.eventCh <- e:
		metrics.WebsocketQueueLength(e.Name, len(s.eventCh))
	default:
		metrics.EventDropped("websocket", e.Name)
		s.logger.Warn("event channel is full, dropping event",
			zap.String("event", string(e.Name)))
	}
}

func parseAuthorParams(params []string) ([]string, error) {
	if len(params) == 0 {
		return []string{allAuthors}, nil
	}
	keys := make([]string, 0, len(params))
	for _, param := range params {
		if param == allAuthors {
			keys = append(keys, allAuthors)
			continue
		}
		address, err := core.ParseAddress(param)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to process '%v' author", param)
		}
		keys = append(keys, address.String())
	}
	return keys, nil
}

// subscribeToPosts subscribes to posts of the given authors.
// Without params, or with "*", the session receives posts of every author.
func (s *session) subscribeToPosts(params []string) string {
	keys, err := parseAuthorParams(params)
	if err != nil {
		return err.Error()
	}
	if len(s.postSubscriptions)+len(keys) > s.subscriptionLimit {
		return fmt.Sprintf("you have reached the limit of %v subscriptions", s.subscriptionLimit)
	}
	var counter int
	for _, key := range keys {
		if _, ok := s.postSubscriptions[key]; ok {
			continue
		}
		options := sources.SubscribeToPostsOptions{AllAuthors: true}
		if key != allAuthors {
			options = sources.SubscribeToPostsOptions{Authors: []core.Address{core.MustParseAddress(key)}}
		}
		cancel := s.postSource.SubscribeToPosts(func(eventData []byte) {
			s.sendEvent(event{
				Name:   events.PostEvent,
				Method: "post",
				Params: eventData,
			})
		}, options)
		s.postSubscriptions[key] = cancel
		counter += 1
	}
	return fmt.Sprintf("success! %v new subscriptions created", counter)
}

// unsubscribeFromPosts drops the subscriptions of the given authors, or all of them without params.
func (s *session) unsubscribeFromPosts(params []string) string {
	var counter int
	if len(params) == 0 {
		counter = len(s.postSubscriptions)
		s.cancel()
		s.postSubscriptions = map[string]sources.CancelFn{}
		return fmt.Sprintf("success! %v subscription(s) removed", counter)
	}
	keys, err := parseAuthorParams(params)
	if err != nil {
		return err.Error()
	}
	for _, key := range keys {
		if cancelFn, ok := s.postSubscriptions[key]; ok {
			cancelFn()
			delete(s.postSubscriptions, key)
			counter += 1
		}
	}
	return fmt.Sprintf("success! %v subscription(s) removed", counter)
}

func jsonRPCResponseMessage(message string, id uint64, jsonrpc, method string) (JsonRPCResponse, error) {
	mes, err := json.Marshal(message)
	if err != nil {
		return JsonRPCResponse{}, err
	}
	resp := JsonRPCResponse{
		ID:      id,
		JSONRPC: jsonrpc,
		Method:  method,
		Result:  mes,
	}
	return resp, nil
}

func (s *session) writeResponse(message string, request JsonRPCRequest) error {
	resp, err := jsonRPCResponseMessage(message, request.ID, request.JSONRPC, request.Method)
	if err != nil {
		return err
	}
	return s.conn.WriteJSON(resp)
}
