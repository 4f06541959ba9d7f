// Package browser owns the Chrome connection and the page-level
// capabilities the filling pipeline needs: navigation, asynchronous
// waiting, network activity monitoring, and the widget commit primitives.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"formpilot/internal/config"
)

// Session owns one Chrome instance and the page being filled.
type Session struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	page       *rod.Page
	controlURL string
}

// NewSession creates an unconnected session.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{cfg: cfg, logger: logger}
}

// Connect attaches to an existing Chrome via debugger URL or launches a new
// instance.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return nil
		}
		s.logger.Warn("stale browser connection, reconnecting")
		_ = s.browser.Close()
		s.browser = nil
		s.page = nil
	}

	controlURL := s.cfg.DebuggerURL
	if controlURL == "" && len(s.cfg.Launch) > 0 {
		bin := s.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(s.cfg.Headless)
		for _, rawFlag := range s.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}
	if controlURL == "" {
		url, err := launcher.New().Headless(s.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	s.browser = browser
	s.controlURL = controlURL
	return nil
}

// Open navigates to url in a fresh page and waits for load.
func (s *Session) Open(ctx context.Context, url string) (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.viewportWidth(),
		Height:            s.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		s.logger.Warn("failed to set viewport", zap.Error(err))
	}

	if err := page.Context(ctx).Timeout(s.cfg.NavigationTimeout()).WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for page load: %w", err)
	}

	s.page = page
	return page, nil
}

// Attach binds the session to an already-open tab whose URL contains match.
func (s *Session) Attach(ctx context.Context, match string) (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil, errors.New("browser not connected")
	}

	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.Contains(info.URL, match) {
			s.page = p
			return p, nil
		}
	}
	return nil, fmt.Errorf("no open tab matching %q", match)
}

// Page returns the active page.
func (s *Session) Page() (*rod.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page, s.page != nil
}

// Close shuts the page and the browser down.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	return err
}

func (s *Session) viewportWidth() int {
	if s.cfg.ViewportWidth == 0 {
		return 1920
	}
	return s.cfg.ViewportWidth
}

func (s *Session) viewportHeight() int {
	if s.cfg.ViewportHeight == 0 {
		return 1080
	}
	return s.cfg.ViewportHeight
}
