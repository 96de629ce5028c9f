package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/micon.go/pkg/micon/shutdown"
	"github.com/robotalks/micon.go/pkg/notify/report"
)

// Topic suffixes under the node.
const (
	CmdTopic    = "power/cmd"
	ReportTopic = "power/report"
)

// DefaultPublishTimeout bounds the wait for a report to be delivered.
const DefaultPublishTimeout = 5 * time.Second

// Notifier is the trigger interface. shutdown.Sequencer implements it.
type Notifier interface {
	Notify(reason shutdown.Reason, arg interface{}) shutdown.Disposition
}

// NodeTopic returns the topic of node, relative to the queue prefix.
func NodeTopic(node, suffix string) string {
	return node + "/" + suffix
}

// Power connects a node to the broker: commands received on
// <node>/power/cmd notify the sequencer and reports are published retained
// to <node>/power/report.
type Power struct {
	Queue          *Queue
	Node           string
	Notifier       Notifier
	PublishTimeout time.Duration

	triggerCh chan triggerReq
}

type triggerReq struct {
	reason shutdown.Reason
	topic  string
}

// NewPower creates Power from a broker URL.
func NewPower(brokerURL, node string, notifier Notifier) (*Power, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("mqtt url: %w", err)
	}
	if opts.ClientID == "" {
		opts.SetClientID("micon:" + node)
	}
	return &Power{
		Queue:          NewQueue(opts, topicPrefix),
		Node:           node,
		Notifier:       notifier,
		PublishTimeout: DefaultPublishTimeout,
		triggerCh:      make(chan triggerReq, 1),
	}, nil
}

// Name implements framework.Named.
func (p *Power) Name() string {
	return "mqtt:" + p.Node
}

// Run implements framework.Runnable. Notifications run on this goroutine,
// never in the client callback, so reports can be published while the
// sequence is being handled.
func (p *Power) Run(ctx context.Context) error {
	p.Queue.Sub(NodeTopic(p.Node, CmdTopic), 1, p.handleCmd)
	token := p.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer p.Queue.Close()
	for {
		select {
		case req := <-p.triggerCh:
			glog.Infof("mqtt: %v requested on %s", req.reason, req.topic)
			if p.Notifier.Notify(req.reason, req.topic) == shutdown.NotHandled {
				glog.Warningf("mqtt: %v not handled", req.reason)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Report implements shutdown.Reporter.
func (p *Power) Report(r *shutdown.Report) error {
	data, err := report.Encode(p.Node, r)
	if err != nil {
		return err
	}
	token := p.Queue.PubWith(NodeTopic(p.Node, ReportTopic), data, 1, true)
	if !token.WaitTimeout(p.PublishTimeout) {
		return fmt.Errorf("publish %s: timeout", ReportTopic)
	}
	return token.Error()
}

func (p *Power) handleCmd(topic string, payload []byte) {
	reason, err := shutdown.ParseReason(string(payload))
	if err != nil {
		glog.Errorf("mqtt: %s: %v", topic, err)
		return
	}
	select {
	case p.triggerCh <- triggerReq{reason: reason, topic: topic}:
	default:
		glog.Warningf("mqtt: %s: trigger pending, %v dropped", topic, reason)
	}
}
