// Package notify fans alert messages out to the configured transports.
// Delivery failures are reported per channel and never stop the other
// transports or the caller.
package notify

import (
	"fmt"
	"time"
)

// Kind classifies an outgoing alert.
type Kind string

const (
	KindProximity Kind = "proximity"
	KindExecution Kind = "execution"
	KindError     Kind = "error"
)

// Notification is one alert message, pre-formatted by the monitor.
type Notification struct {
	Kind        Kind
	Title       string
	Message     string
	Symbol      string
	Rank        int
	Price       float64
	Target      string
	TargetPrice float64
	DistancePct float64
	ReferenceH  float64
	Timestamp   time.Time
}

// Notifier is one delivery transport.
type Notifier interface {
	Send(n *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans a notification out to every enabled transport.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates an empty manager; transports are added per config.
func NewManager() *Manager {
	return &Manager{}
}

// AddNotifier registers a transport.
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Enabled reports whether any transport can deliver.
func (m *Manager) Enabled() bool {
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			return true
		}
	}
	return false
}

// Send delivers to all enabled transports and reports which succeeded and
// which failed. A failure on one channel never blocks another.
func (m *Manager) Send(n *Notification) (sent []string, failed map[string]string) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	for _, nt := range m.notifiers {
		if !nt.IsEnabled() {
			continue
		}
		if err := nt.Send(n); err != nil {
			if failed == nil {
				failed = map[string]string{}
			}
			failed[nt.Name()] = err.Error()
			continue
		}
		sent = append(sent, nt.Name())
	}
	return sent, failed
}

// SendProximity builds and delivers a "price approaching target" alert.
func (m *Manager) SendProximity(symbol string, rank int, price float64, target string, targetPrice, distancePct, refH float64) ([]string, map[string]string) {
	return m.Send(&Notification{
		Kind:   KindProximity,
		Title:  fmt.Sprintf("%s approaching %s", symbol, target),
		Message: fmt.Sprintf("rank #%d\nprice %.8g\ntarget %s @ %.8g (%.2f%% away)\nreference H %.8g",
			rank, price, target, targetPrice, distancePct, refH),
		Symbol:      symbol,
		Rank:        rank,
		Price:       price,
		Target:      target,
		TargetPrice: targetPrice,
		DistancePct: distancePct,
		ReferenceH:  refH,
	})
}

// SendExecution builds and delivers a "buy level crossed" alert.
func (m *Manager) SendExecution(symbol string, rank int, price float64, target string, targetPrice, refH float64) ([]string, map[string]string) {
	return m.Send(&Notification{
		Kind:   KindExecution,
		Title:  fmt.Sprintf("%s crossed %s", symbol, target),
		Message: fmt.Sprintf("rank #%d\nprice %.8g\nlevel %s @ %.8g\nreference H %.8g",
			rank, price, target, targetPrice, refH),
		Symbol:      symbol,
		Rank:        rank,
		Price:       price,
		Target:      target,
		TargetPrice: targetPrice,
		ReferenceH:  refH,
	})
}
