package navigate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	tls2 "github.com/refraction-networking/utls"
	"golang.org/x/net/html"
)

const prefetchUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Prefetcher probes the target over plain HTTP with a Chrome TLS fingerprint
// before a browser is launched. A 503 or an obvious challenge body here is a
// cheap early signal; the result is diagnostic only and never blocks the
// browser path.
type Prefetcher struct {
	proxy string
}

// NewPrefetcher creates a prefetch probe.
// proxy, if non-empty, is used for the probe connection.
func NewPrefetcher(proxy string) *Prefetcher {
	return &Prefetcher{proxy: proxy}
}

// Probe fetches the target and returns the HTTP status code observed plus
// whether the body already reads like a bot challenge, so the caller can
// record both before a browser ever launches. Any transport failure returns
// 0, false; the probe is best-effort by contract.
func (f *Prefetcher) Probe(ctx context.Context, targetURL string) (int, bool) {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, f.proxy)
		},
	}
	if f.proxy != "" {
		proxyURL, err := url.Parse(f.proxy)
		if err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("User-Agent", prefetchUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	challenged := false
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if title := extractTitle(body); title != "" && Blocked(targetURL, title, "") {
		challenged = true
		slog.Debug("prefetch probe saw a challenge title", "target", targetURL, "title", title)
	}

	return resp.StatusCode, challenged
}

// extractTitle pulls the document title out of a partial HTML body without a
// full parse.
func extractTitle(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				if tokenizer.Next() == html.TextToken {
					return strings.TrimSpace(string(tokenizer.Text()))
				}
				return ""
			}
		}
	}
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via
// utls, optionally through a SOCKS5 proxy.
func dialTLSChrome(ctx context.Context, network, addr, proxy string) (net.Conn, error) {
	var rawConn net.Conn
	var err error

	dialer := &net.Dialer{}

	if proxy != "" {
		proxyURL, parseErr := url.Parse(proxy)
		if parseErr == nil && (proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h") {
			socksConn, socksErr := dialer.DialContext(ctx, "tcp", proxyURL.Host)
			if socksErr != nil {
				return nil, fmt.Errorf("socks5 dial: %w", socksErr)
			}
			rawConn = socksConn
		}
	}

	if rawConn == nil {
		rawConn, err = dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
	}

	host := addr
	if h, _, splitErr := net.SplitHostPort(addr); splitErr == nil {
		host = h
	}
	if strings.Contains(host, ":") {
		host = strings.Trim(host, "[]")
	}

	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName: host,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
