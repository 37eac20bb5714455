package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// dialerFor returns a websocket dialer sharing the TLS settings of client.
func dialerFor(client *http.Client) *websocket.Dialer {
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	if t, ok := client.Transport.(*http.Transport); ok {
		d.TLSClientConfig = t.TLSClientConfig
	}
	return d
}
