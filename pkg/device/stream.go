// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package device

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Bridges carry the same frames and notifications as the BLE link: commands
// are written as-is and each newline-terminated line (serial) or message
// (WebSocket) is one notification.

// maxNotificationSize bounds one serial line
const maxNotificationSize = 64 * 1024

//////////////////////////////////////////////////////////////
// Serial bridge
//////////////////////////////////////////////////////////////

// SerialDialer opens a UART bridge to the device
type SerialDialer struct {
	Port     string
	BaudRate int
	Log      *logrus.Entry
}

// Dial opens the port and starts reading notification lines
func (d *SerialDialer) Dial(ctx context.Context, notify NotifyFunc) (Link, error) {
	mode := &serial.Mode{
		BaudRate: d.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(d.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", d.Port, err)
	}

	link := &serialLink{
		port: port,
		name: fmt.Sprintf("%s @ %d baud", d.Port, d.BaudRate),
		log:  logOrDefault(d.Log, "serial"),
	}
	go link.readLoop(notify)
	return link, nil
}

type serialLink struct {
	port   serial.Port
	name   string
	log    *logrus.Entry
	closed atomic.Bool
}

func (l *serialLink) readLoop(notify NotifyFunc) {
	scanner := bufio.NewScanner(l.port)
	scanner.Buffer(make([]byte, 4096), maxNotificationSize)
	for scanner.Scan() {
		notify(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil && !l.closed.Load() {
		l.log.WithError(err).Warn("serial read ended")
	}
}

func (l *serialLink) Name() string {
	return l.name
}

func (l *serialLink) Write(p []byte) (int, error) {
	return l.port.Write(p)
}

func (l *serialLink) Close() error {
	l.closed.Store(true)
	return l.port.Close()
}

//////////////////////////////////////////////////////////////
// WebSocket bridge
//////////////////////////////////////////////////////////////

// WebSocketDialer connects to a network bridge with optional HTTP Basic auth
type WebSocketDialer struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
	Log           *logrus.Entry
}

// Dial connects and starts reading notification messages
func (d *WebSocketDialer) Dial(ctx context.Context, notify NotifyFunc) (Link, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: d.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if d.Username != "" && d.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(d.Username + ":" + d.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, d.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	link := &webSocketLink{
		conn: conn,
		name: u.Host,
		log:  logOrDefault(d.Log, "websocket"),
	}
	go link.readLoop(notify)
	return link, nil
}

type webSocketLink struct {
	conn    *websocket.Conn
	name    string
	log     *logrus.Entry
	writeMu sync.Mutex
	closed  atomic.Bool
}

func (l *webSocketLink) readLoop(notify NotifyFunc) {
	for {
		messageType, data, err := l.conn.ReadMessage()
		if err != nil {
			if !l.closed.Load() {
				l.log.WithError(err).Warn("websocket read ended")
			}
			return
		}
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			notify(data)
		}
	}
}

func (l *webSocketLink) Name() string {
	return l.name
}

func (l *webSocketLink) Write(p []byte) (int, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := l.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (l *webSocketLink) Close() error {
	l.closed.Store(true)
	l.writeMu.Lock()
	l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	l.writeMu.Unlock()
	return l.conn.Close()
}

func logOrDefault(log *logrus.Entry, component string) *logrus.Entry {
	if log != nil {
		return log
	}
	return logrus.WithField("component", component)
}
