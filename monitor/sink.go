// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Sink is a PAIR-like monitor endpoint: events matching Mask are
// delivered to Events(); everything else is dropped (spec.md §6
// "Multiple events may be OR'd in the subscription mask").
type Sink struct {
	mu     sync.Mutex
	mask   Kind
	ch     chan Event
	log    *logrus.Entry
	closed bool

	msgsSent     *prometheus.CounterVec
	msgsRecv     *prometheus.CounterVec
	bytesSent    *prometheus.CounterVec
	bytesRecv    *prometheus.CounterVec
	pipesOpen    *prometheus.GaugeVec
	hwmDrops     *prometheus.CounterVec
}

// NewSink constructs a Sink subscribed to mask, registering its counters
// against reg; with a nil reg the counters are kept but registered nowhere.
func NewSink(mask Kind, reg prometheus.Registerer, log *logrus.Entry) *Sink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Sink{
		mask: mask,
		ch:   make(chan Event, 256),
		log:  log,
		msgsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zlink_messages_sent_total",
			Help: "Messages sent, by socket id.",
		}, []string{"socket"}),
		msgsRecv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zlink_messages_received_total",
			Help: "Messages received, by socket id.",
		}, []string{"socket"}),
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zlink_bytes_sent_total",
			Help: "Body bytes sent, by socket id.",
		}, []string{"socket"}),
		bytesRecv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zlink_bytes_received_total",
			Help: "Body bytes received, by socket id.",
		}, []string{"socket"}),
		pipesOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zlink_pipes_open",
			Help: "Currently attached pipes, by socket id.",
		}, []string{"socket"}),
		hwmDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zlink_hwm_drops_total",
			Help: "Messages dropped due to HWM backpressure, by socket id.",
		}, []string{"socket"}),
	}
	if reg != nil {
		reg.MustRegister(s.msgsSent, s.msgsRecv, s.bytesSent, s.bytesRecv, s.pipesOpen, s.hwmDrops)
	}
	return s
}

// Emit publishes ev if it matches the subscription mask; non-blocking,
// drops on a full channel rather than stalling the I/O thread.
func (s *Sink) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || ev.Kind&s.mask == 0 {
		return
	}
	select {
	case s.ch <- ev:
	default:
		s.log.WithField("kind", ev.Kind).Warn("monitor: event dropped, channel full")
	}
}

// Events returns the channel events are delivered on.
func (s *Sink) Events() <-chan Event { return s.ch }

// Close stops the sink, delivering a final KindMonitorStopped event.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	select {
	case s.ch <- NewEvent(KindMonitorStopped, 0, "", "", nil):
	default:
	}
	close(s.ch)
}

// CountSent records a successful send of n bytes on socket.
func (s *Sink) CountSent(socket string, n int) {
	s.msgsSent.WithLabelValues(socket).Inc()
	s.bytesSent.WithLabelValues(socket).Add(float64(n))
}

// CountRecv records a successful receive of n bytes on socket.
func (s *Sink) CountRecv(socket string, n int) {
	s.msgsRecv.WithLabelValues(socket).Inc()
	s.bytesRecv.WithLabelValues(socket).Add(float64(n))
}

// SetPipesOpen reports the current open-pipe count for socket.
func (s *Sink) SetPipesOpen(socket string, n int) {
	s.pipesOpen.WithLabelValues(socket).Set(float64(n))
}

// CountHWMDrop records one message dropped due to HWM backpressure.
func (s *Sink) CountHWMDrop(socket string) {
	s.hwmDrops.WithLabelValues(socket).Inc()
}
