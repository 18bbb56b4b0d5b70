// Package policy decides whether downloads may start on the current network.
package policy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/openedx/edxoffline/internal/domain"
)

type Connection string

const (
	ConnectionWifi     Connection = "wifi"
	ConnectionCellular Connection = "cellular"
	ConnectionNone     Connection = "none"
)

func ParseConnection(s string) (Connection, error) {
	switch c := Connection(strings.ToLower(strings.TrimSpace(s))); c {
	case ConnectionWifi, ConnectionCellular, ConnectionNone:
		return c, nil
	default:
		return "", fmt.Errorf("unknown connection type %q", s)
	}
}

// NetworkMonitor reports the current connection type.
type NetworkMonitor interface {
	Connection() Connection
}

// StaticMonitor reports a configured connection type. Set lets a daemon
// update it at runtime.
type StaticMonitor struct {
	mu   sync.RWMutex
	conn Connection
}

func NewStaticMonitor(c Connection) *StaticMonitor {
	return &StaticMonitor{conn: c}
}

func (m *StaticMonitor) Connection() Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

func (m *StaticMonitor) Set(c Connection) {
	m.mu.Lock()
	m.conn = c
	m.mu.Unlock()
}

// Checker combines the Wi-Fi only preference with a network monitor and the
// free space of the download disk.
type Checker struct {
	mu       sync.RWMutex
	wifiOnly bool
	monitor  NetworkMonitor
	storage  DiskSpace
}

func NewChecker(wifiOnly bool, monitor NetworkMonitor) *Checker {
	return &Checker{wifiOnly: wifiOnly, monitor: monitor, storage: OSDiskSpace{}}
}

func (c *Checker) WifiOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wifiOnly
}

func (c *Checker) SetWifiOnly(v bool) {
	c.mu.Lock()
	c.wifiOnly = v
	c.mu.Unlock()
}

// Allow returns nil when a download may start right now.
func (c *Checker) Allow() error {
	conn := c.monitor.Connection()
	switch {
	case conn == ConnectionNone:
		return domain.ErrOffline
	case c.WifiOnly() && conn != ConnectionWifi:
		return domain.ErrWifiRequired
	default:
		return nil
	}
}
