// Package fingerprint builds HTTP transports whose TLS handshake imitates a
// real browser, so scraped result pages are served as they are to people.
package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

var hellos = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
	ProfileRandom:  utls.HelloRandomizedALPN,
}

// Profiles lists every supported profile name in sorted order.
func Profiles() []string {
	out := []string{string(ProfileGo)}
	for p := range hellos {
		out = append(out, string(p))
	}
	slices.Sort(out)
	return out
}

// ParseProfile validates a profile name. The empty string selects Chrome.
func ParseProfile(s string) (Profile, error) {
	p := Profile(s)
	if p == "" {
		return ProfileChrome, nil
	}
	if _, ok := hellos[p]; ok || p == ProfileGo {
		return p, nil
	}
	return "", fmt.Errorf("unknown tls fingerprint %q (want one of %v)", s, Profiles())
}

// Transport returns an http.RoundTripper presenting the TLS fingerprint of p.
// ProfileGo yields a plain clone of http.DefaultTransport. proxyFunc, when
// non-nil, selects the proxy per request.
func Transport(p Profile, proxyFunc func(*http.Request) (*url.URL, error)) (http.RoundTripper, error) {
	t, err := newTransport(p, proxyFunc, false)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func newTransport(p Profile, proxyFunc func(*http.Request) (*url.URL, error), insecure bool) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyFunc != nil {
		transport.Proxy = proxyFunc
	}

	if p == ProfileGo {
		if insecure {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	hello, ok := hellos[p]
	if !ok {
		return nil, fmt.Errorf("unknown tls fingerprint %q", p)
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn := utls.UClient(conn, &utls.Config{ServerName: host, InsecureSkipVerify: insecure}, hello)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("utls handshake with %s: %w", host, err)
		}
		return uConn, nil
	}
	return transport, nil
}
