// Package browser fetches live post state through a real Chrome instance.
// The platform has no read API worth speaking of; rendering the page and
// reading the DOM back is the only reliable window into whether a post
// still exists and what it currently says.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"replygate/internal/config"
)

// Manager owns the Chrome connection. It either attaches to an existing
// debugger (operator-supplied, typically a logged-in profile) or launches
// its own headless instance.
type Manager struct {
	cfg config.Browser
	log *zap.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string
}

func NewManager(cfg config.Browser, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{cfg: cfg, log: log}
}

// Start connects to Chrome, reconnecting if a previous connection went
// stale. Safe to call repeatedly.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		m.log.Warn("stale browser connection, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(m.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	m.log.Info("browser connected", zap.Bool("headless", m.cfg.Headless))
	return nil
}

// ControlURL returns the DevTools websocket URL, empty before Start.
func (m *Manager) ControlURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controlURL
}

// Shutdown closes the browser connection. A launched Chrome exits with it;
// an attached one survives.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.controlURL = ""
	return err
}

// newPage opens a fresh page in the default browser context. Pages must
// share the attached profile's cookies: post pages render a login wall
// for logged-out visitors, which would classify as inaccessible. The
// returned cleanup closes the page; callers defer it.
func (m *Manager) newPage(ctx context.Context) (*rod.Page, func(), error) {
	if err := m.Start(ctx); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	browser := m.browser
	m.mu.Unlock()
	if browser == nil {
		return nil, nil, errors.New("browser not connected")
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, nil, fmt.Errorf("create page: %w", err)
	}
	return page, func() { _ = page.Close() }, nil
}
