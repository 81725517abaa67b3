package youtube

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	// Registers the socks4 and socks4a schemes with proxy.FromURL.
	_ "github.com/bdandy/go-socks4"
	"golang.org/x/net/proxy"
)

const requestTimeout = 15 * time.Second

// NewHTTPClient returns a client that routes through proxyStr when set.
// Supported schemes are http, https, socks4, socks4a and socks5.
func NewHTTPClient(proxyStr string) (*http.Client, error) {
	if proxyStr == "" {
		return &http.Client{Timeout: requestTimeout}, nil
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy format: %w", err)
	}

	forward := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 10 * time.Second}
	var transport *http.Transport
	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if proxyURL.User != nil {
			auth = &proxy.Auth{User: proxyURL.User.Username()}
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, forward)
		if err != nil {
			return nil, fmt.Errorf("SOCKS5 dialer: %w", err)
		}
		transport = &http.Transport{DialContext: dialContext(dialer)}
	case "socks4", "socks4a":
		dialer, err := proxy.FromURL(proxyURL, forward)
		if err != nil {
			return nil, fmt.Errorf("SOCKS4 dialer: %w", err)
		}
		transport = &http.Transport{DialContext: dialContext(dialer)}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	return &http.Client{Timeout: requestTimeout, Transport: transport}, nil
}

func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := d.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return d.Dial(network, addr)
	}
}
