package subscriber

import (
	"context"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/interaction"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscription"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// registration is one subscription to register.
type registration struct {
	path    string
	monitor time.Duration
	publish time.Duration
}

// result is the outcome of one registration or unregistration.
type result struct {
	id  int
	err error
}

// service is the subscription service a client channel talks to: the
// server's own, or an in-process fallback.
type service interface {
	create(ctx context.Context, queueSize int) (int, error)

	// register and unregister return one result per entry. The error is
	// set if the exchange failed as a whole.
	register(ctx context.Context, channel int, regs []registration) ([]result, error)
	unregister(ctx context.Context, channel int, ids []int) ([]result, error)

	wait(ctx context.Context, channel, lastAck int) ([]wire.Notification, error)
	local() bool
	close()
}

// remoteService invokes the subscription service of a peer.
type remoteService struct {
	peer interaction.Peer
	path string
}

func (s *remoteService) method(name string) string {
	return s.path + "/" + name
}

func (s *remoteService) create(ctx context.Context, queueSize int) (int, error) {
	v, err := s.peer.Invoke(ctx, s.method(subscription.MethodCreateSubscriptionChannel), map[string]value.Value{
		subscription.ArgNotificationQueueSize: value.Integer(int64(queueSize)),
	})
	if err != nil {
		return 0, err
	}
	id, err := v.AsInt()
	if err != nil {
		return 0, err
	}
	return int(id), nil
}

func (s *remoteService) register(ctx context.Context, channel int, regs []registration) ([]result, error) {
	b := interaction.NewBatch(s.peer)
	calls := make([]*interaction.Call, len(regs))
	for i, r := range regs {
		calls[i] = b.Invoke(s.method(subscription.MethodRegisterSubscription), map[string]value.Value{
			subscription.ArgSubscriptionChannel: value.Integer(int64(channel)),
			subscription.ArgPropertyLink:        value.Link(r.path),
			subscription.ArgMonitorInterval:     value.TimeSpan(r.monitor),
			subscription.ArgPublishInterval:     value.TimeSpan(r.publish),
		})
	}
	return collectIDs(ctx, b, calls)
}

func (s *remoteService) unregister(ctx context.Context, channel int, ids []int) ([]result, error) {
	b := interaction.NewBatch(s.peer)
	calls := make([]*interaction.Call, len(ids))
	for i, id := range ids {
		calls[i] = b.Invoke(s.method(subscription.MethodUnregisterSubscription), map[string]value.Value{
			subscription.ArgSubscriptionChannel: value.Integer(int64(channel)),
			subscription.ArgSubscriptionID:      value.Integer(int64(id)),
		})
	}
	results, err := collect(ctx, b, calls)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].id = ids[i]
	}
	return results, nil
}

func (s *remoteService) wait(ctx context.Context, channel, lastAck int) ([]wire.Notification, error) {
	v, err := s.peer.Invoke(ctx, s.method(subscription.MethodWaitNotification), map[string]value.Value{
		subscription.ArgSubscriptionChannel: value.Integer(int64(channel)),
		subscription.ArgLastNotificationID:  value.Integer(int64(lastAck)),
	})
	if err != nil {
		return nil, err
	}
	return wire.NotificationsFromValue(v)
}

func (s *remoteService) local() bool { return false }

func (s *remoteService) close() {}

// collect sends b and returns the raw outcome of each call. A call without
// a response fails the exchange.
func collect(ctx context.Context, b *interaction.Batch, calls []*interaction.Call) ([]result, error) {
	if err := b.Send(ctx); err != nil {
		return nil, err
	}
	results := make([]result, len(calls))
	for i, c := range calls {
		if !c.Done() {
			return nil, c.Err()
		}
		results[i].err = c.Err()
	}
	return results, nil
}

// collectIDs is collect for calls returning an Integer id.
func collectIDs(ctx context.Context, b *interaction.Batch, calls []*interaction.Call) ([]result, error) {
	if err := b.Send(ctx); err != nil {
		return nil, err
	}
	results := make([]result, len(calls))
	for i, c := range calls {
		if !c.Done() {
			return nil, c.Err()
		}
		v, err := c.Value()
		if err != nil {
			results[i].err = err
			continue
		}
		id, err := v.AsInt()
		if err != nil {
			results[i].err = err
			continue
		}
		results[i].id = int(id)
	}
	return results, nil
}

// localService runs a subscription service in-process.
type localService struct {
	svc *subscription.Service
}

func newLocalService(ctx context.Context, resolver subscription.Resolver, config Config) *localService {
	svc := subscription.NewService(resolver, subscription.Config{
		QueueSize:      config.QueueSize,
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
	})
	svc.Start(ctx)
	return &localService{svc: svc}
}

func (s *localService) create(_ context.Context, queueSize int) (int, error) {
	return s.svc.CreateChannel(queueSize)
}

func (s *localService) register(ctx context.Context, channel int, regs []registration) ([]result, error) {
	results := make([]result, len(regs))
	for i, r := range regs {
		results[i].id, results[i].err = s.svc.RegisterSubscription(ctx, channel, r.path, r.monitor, r.publish)
	}
	return results, nil
}

func (s *localService) unregister(_ context.Context, channel int, ids []int) ([]result, error) {
	results := make([]result, len(ids))
	for i, id := range ids {
		results[i].id = id
		_, results[i].err = s.svc.UnregisterSubscription(channel, id)
	}
	return results, nil
}

func (s *localService) wait(ctx context.Context, channel, lastAck int) ([]wire.Notification, error) {
	return s.svc.WaitNotification(ctx, channel, lastAck)
}

func (s *localService) local() bool { return true }

func (s *localService) close() {
	s.svc.Close()
}
