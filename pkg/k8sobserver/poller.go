package k8sobserver

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deployforge/engine/pkg/ids"
)

// DefaultPollInterval is the cadence at which a Poller re-observes a
// service's Kubernetes objects while a deployment is in flight (§4.3).
const DefaultPollInterval = 10 * time.Second

// Poller repeatedly observes one service and calls OnReport until
// cancelled; a terminal state in a report does not stop it.
type Poller struct {
	observer *Observer
	interval time.Duration
	logger   *logrus.Logger
}

func NewPoller(observer *Observer, logger *logrus.Logger) *Poller {
	return &Poller{observer: observer, interval: DefaultPollInterval, logger: logger}
}

func (p *Poller) WithInterval(d time.Duration) *Poller {
	p.interval = d
	return p
}

// Run polls until ctx is cancelled, invoking onReport after every
// successful observation. It is meant to be launched as its own
// "deployment-monitor" worker goroutine; cancelling ctx is the single
// shutdown path.
func (p *Poller) Run(ctx context.Context, namespace string, serviceID ids.ServiceID, onReport func(*AppDeploymentInfo)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	observeOnce := func() error {
		report, err := p.observer.Observe(ctx, namespace, serviceID)
		if err != nil {
			p.logger.WithError(err).WithField("service_id", serviceID.String()).
				Warn("deployment-monitor: observation failed, will retry next tick")
			return nil
		}
		onReport(report)
		return nil
	}

	if err := observeOnce(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := observeOnce(); err != nil {
				return err
			}
		}
	}
}
