// Package subcontrollers turns bus envelopes into service calls. Each
// message kind is one Route in a dispatch table; the Router owns decoding,
// validation, permission checks and error mapping so handlers stay small.
package subcontrollers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatsino/internal/bus"
	"chatsino/internal/common"
	"chatsino/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

const defaultHandlerTimeout = 10 * time.Second

type Request struct {
	Kind string
	Args any
	From models.ClientIdentity
}

type HandlerFunc func(ctx context.Context, req Request) (any, error)

type Route struct {
	// NewArgs returns a pointer to a fresh args struct; nil means the kind
	// takes no arguments.
	NewArgs     func() any
	Handler     HandlerFunc
	Requirement models.PermissionLevel
	// Errors overrides the default wire text for specific failures.
	Errors map[error]string
	// Fallback answers errors nobody recognised.
	Fallback string
}

var defaultErrorMessages = []struct {
	err error
	msg string
}{
	{models.ErrInvalidArguments, "Validation errors detected."},
	{models.ErrNotPermitted, "You do not have permission to do that."},
	{models.ErrUnknownMessageKind, "Unknown message kind."},
	{models.ErrGameInProgress, "You already have a game in progress."},
	{models.ErrNoGameInProgress, "There is no game in progress."},
	{models.ErrCannotTakeAction, "You cannot take that action right now."},
	{models.ErrCannotAffordWager, "Cannot afford to wager that many chips."},
	{models.ErrNotTakingBets, "Bets are not being taken right now."},
	{models.ErrDifferentClient, "You can only place bets for yourself."},
	{models.ErrAlreadySpun, "The wheel has already been spun."},
	{models.ErrCannotPayout, "The round cannot be paid out yet."},
	{models.ErrAlreadyPaidOut, "The round has already been paid out."},
	{models.ErrNonexistentRoom, "Chatroom does not exist."},
	{models.ErrNotAllowedInRoom, "You are not allowed in that chatroom."},
}

type Router struct {
	bus      bus.Bus
	validate *validator.Validate
	log      *log.Entry
	timeout  time.Duration

	mu     sync.RWMutex
	routes map[string]Route

	sub      bus.Subscription
	inflight sync.WaitGroup
}

func NewRouter(b bus.Bus, logger *log.Entry) *Router {
	return &Router{
		bus:      b,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.WithField("component", "router"),
		timeout:  defaultHandlerTimeout,
		routes:   make(map[string]Route),
	}
}

func (r *Router) Register(kind string, route Route) {
	if route.Requirement == "" {
		route.Requirement = models.PermissionUser
	}
	if route.Fallback == "" {
		route.Fallback = fmt.Sprintf("Unable to process %s.", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[kind] = route
}

func (r *Router) route(kind string) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[kind]
	return route, ok
}

// Start subscribes to client messages. Each message is handled on its own
// goroutine so a slow handler never holds up the bus.
func (r *Router) Start() error {
	sub, err := r.bus.Subscribe(models.ChannelClientMessage, func(_ context.Context, payload []byte) {
		r.inflight.Add(1)
		go func() {
			defer r.inflight.Done()
			common.WithRecover(r.log, func() { r.handle(payload) }, "message handler panicked")
		}()
	})
	if err != nil {
		return fmt.Errorf("router subscribe: %w", err)
	}
	r.sub = sub
	r.log.Info("router listening for client messages")
	return nil
}

// Stop unsubscribes and waits for in-flight handlers.
func (r *Router) Stop() {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	r.inflight.Wait()
}

func (r *Router) handle(payload []byte) {
	var env models.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.log.WithError(err).Warn("dropping undecodable envelope")
		return
	}
	if env.From == nil {
		r.log.WithField("kind", env.Kind).Warn("dropping envelope without sender")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	resp := r.Dispatch(ctx, env)
	if err := r.publish(ctx, resp); err != nil {
		r.log.WithFields(log.Fields{"kind": env.Kind, "client_id": env.From.ID}).
			WithError(err).Error("failed to publish response")
	}
}

// Dispatch runs one envelope through its route and builds the response
// addressed back to the sender.
func (r *Router) Dispatch(ctx context.Context, env models.Envelope) (resp models.Response) {
	from := *env.From
	resp = models.Response{To: from.ID, Kind: env.Kind}
	logger := r.log.WithFields(log.Fields{"kind": env.Kind, "client_id": from.ID})

	route, ok := r.route(env.Kind)
	if !ok {
		resp.Error = errorMessage(Route{}, models.ErrUnknownMessageKind)
		return resp
	}

	defer func() {
		if p := recover(); p != nil {
			logger.WithField("panic", p).Error("handler panicked")
			resp.Data = nil
			resp.Error = route.Fallback
		}
	}()

	args, err := r.decodeArgs(route, []byte(env.Args))
	if err != nil {
		logger.WithError(err).Debug("invalid arguments")
		resp.Error = errorMessage(route, models.ErrInvalidArguments)
		return resp
	}
	if !from.Can(route.Requirement) {
		resp.Error = errorMessage(route, models.ErrNotPermitted)
		return resp
	}

	data, err := route.Handler(ctx, Request{Kind: env.Kind, Args: args, From: from})
	if err != nil {
		if msg := errorMessage(route, err); msg != "" {
			resp.Error = msg
			return resp
		}
		logger.WithError(err).Error("handler failed")
		resp.Error = route.Fallback
		return resp
	}

	raw, err := json.Marshal(data)
	if err != nil {
		logger.WithError(err).Error("failed to encode response")
		resp.Error = route.Fallback
		return resp
	}
	resp.Data = raw
	return resp
}

func (r *Router) decodeArgs(route Route, raw []byte) (any, error) {
	if route.NewArgs == nil {
		return nil, nil
	}
	args := route.NewArgs()
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, args); err != nil {
		return nil, err
	}
	if err := r.validate.Struct(args); err != nil {
		return nil, err
	}
	return args, nil
}

// errorMessage maps a known failure to its wire text, or "" when err is not
// one of ours.
func errorMessage(route Route, err error) string {
	for target, msg := range route.Errors {
		if errors.Is(err, target) {
			return msg
		}
	}
	for _, known := range defaultErrorMessages {
		if errors.Is(err, known.err) {
			return known.msg
		}
	}
	return ""
}

func (r *Router) publish(ctx context.Context, resp models.Response) error {
	channel := models.ChannelSuccessResponse
	if resp.Error != "" {
		channel = models.ChannelErrorResponse
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return r.bus.Publish(ctx, channel, payload)
}

// SendTo pushes a server-initiated message to one client through the
// gateway's response subscription.
func (r *Router) SendTo(ctx context.Context, clientID int64, kind string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.publish(ctx, models.Response{To: clientID, Kind: kind, Data: raw})
}
