// Package browser owns the single shared headless browser session used for
// the whole batch run. Each store query gets a fresh page with its own
// response collector; nothing is shared between extraction calls.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// collectorJS hooks fetch and XMLHttpRequest before any site script runs and
// accumulates parsed JSON responses on the page. The array lives and dies
// with the page, so each extraction call owns its collected responses.
const collectorJS = `
	window.__collectedResponses = [];
	const origFetch = window.fetch;
	window.fetch = function(...args) {
		return origFetch.apply(this, args).then(response => {
			if (response.ok) {
				response.clone().json().then(data => {
					window.__collectedResponses.push({url: String(args[0]), data: data});
				}).catch(() => {});
			}
			return response;
		});
	};
	const OrigXHR = window.XMLHttpRequest;
	window.XMLHttpRequest = function() {
		const xhr = new OrigXHR();
		const origOpen = xhr.open;
		xhr.open = function(method, url) {
			this.__url = url;
			return origOpen.apply(this, arguments);
		};
		xhr.addEventListener('load', function() {
			if (this.status === 200) {
				try {
					window.__collectedResponses.push({url: String(this.__url), data: JSON.parse(this.responseText)});
				} catch (e) {}
			}
		});
		return xhr;
	};
`

// stealthJS masks the most common headless markers so client-side rendering
// behaves as it would for a regular visitor.
const stealthJS = `
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'languages', { get: () => ['nb-NO', 'nb', 'en'] });
	window.chrome = window.chrome || { runtime: {} };
`

// Config holds session settings
type Config struct {
	Headless    bool
	NavTimeout  time.Duration
	SettleDelay time.Duration
}

// Session wraps the shared rod browser. It is opened once at run start and
// must be closed on every exit path.
type Session struct {
	browser *rod.Browser
	cfg     Config
}

// CollectedResponse is one intercepted JSON API response.
type CollectedResponse struct {
	URL  string          `json:"url"`
	Data json.RawMessage `json:"data"`
}

// NewSession launches the browser and connects to it.
func NewSession(cfg Config) (*Session, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true).
		Leakless(false)

	// Use system Chromium when present (container images), auto-detect otherwise.
	if _, err := os.Stat("/usr/bin/chromium-browser"); err == nil {
		l = l.Bin("/usr/bin/chromium-browser")
		log.Printf("[BROWSER] Using system Chromium")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	return &Session{browser: b, cfg: cfg}, nil
}

// Close shuts the browser down.
func (s *Session) Close() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			log.Printf("[BROWSER] Close failed: %v", err)
		}
	}
}

// Open navigates a fresh page to url with the response collector installed,
// waits for the document to load plus a bounded settle delay for client-side
// rendering, and returns the page. The caller owns the page and must close it.
func (s *Session) Open(ctx context.Context, url string) (*SearchPage, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	page = page.Context(ctx)

	if _, err := page.EvalOnNewDocument(stealthJS + collectorJS); err != nil {
		page.Close()
		return nil, fmt.Errorf("installing response collector: %w", err)
	}

	nav := page.Timeout(s.cfg.NavTimeout)
	if err := nav.Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		page.Close()
		return nil, fmt.Errorf("waiting for %s: %w", url, err)
	}

	// Let client-side rendering finish before extraction.
	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-ctx.Done():
		page.Close()
		return nil, ctx.Err()
	}

	return &SearchPage{page: page}, nil
}

// SearchPage is one rendered store search page, owned by a single
// extraction call.
type SearchPage struct {
	page *rod.Page
}

// Responses drains the page's collected JSON API responses.
func (p *SearchPage) Responses() ([]CollectedResponse, error) {
	res, err := p.page.Eval(`() => JSON.stringify(window.__collectedResponses || [])`)
	if err != nil {
		return nil, fmt.Errorf("reading collected responses: %w", err)
	}
	var out []CollectedResponse
	if err := json.Unmarshal([]byte(res.Value.Str()), &out); err != nil {
		return nil, fmt.Errorf("decoding collected responses: %w", err)
	}
	return out, nil
}

// Elements queries the rendered document.
func (p *SearchPage) Elements(selector string) (rod.Elements, error) {
	return p.page.Elements(selector)
}

// Close releases the page.
func (p *SearchPage) Close() {
	if err := p.page.Close(); err != nil {
		log.Printf("[BROWSER] Page close failed: %v", err)
	}
}
