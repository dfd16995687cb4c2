// pattern: Functional Core

package stream

import (
	"net/url"
)

// Kind selects which backend stream to attach to.
type Kind string

const (
	KindLogs  Kind = "logs"
	KindShell Kind = "shell"
)

// URL builds the WebSocket address for a stream: ws:// for an http base,
// wss:// for https, path /ws/<kind>, query name and container.
func URL(base *url.URL, kind Kind, stack, container string) string {
	u := url.URL{
		Scheme: "ws",
		Host:   base.Host,
		Path:   "/ws/" + string(kind),
	}
	if base.Scheme == "https" {
		u.Scheme = "wss"
	}
	q := url.Values{}
	q.Set("name", stack)
	q.Set("container", container)
	u.RawQuery = q.Encode()
	return u.String()
}
