// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package logstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const clientQueueSize = 256

type pending struct {
	kind    string
	message string
}

// Client mirrors lines to a save-information endpoint. Mirroring never blocks
// the caller: lines are queued to one worker and dropped when the queue is full.
type Client struct {
	url  string
	http *http.Client
	log  *logrus.Entry

	queue     chan pending
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewClient starts a client posting to baseURL + "/save-information"
func NewClient(baseURL string, log *logrus.Entry) *Client {
	c := &Client{
		url:     strings.TrimSuffix(baseURL, "/") + "/save-information",
		http:    &http.Client{Timeout: 5 * time.Second},
		log:     log,
		queue:   make(chan pending, clientQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.run()
	return c
}

// Save posts one line and waits for the reply
func (c *Client) Save(ctx context.Context, kind, message string) error {
	body, err := json.Marshal(saveRequest{Message: message, Type: kind})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("save-information returned %d: %s", resp.StatusCode, bytes.TrimSpace(reply))
	}
	return nil
}

// Mirror returns a sink that queues each line of the given kind
func (c *Client) Mirror(kind string) func(string) {
	return func(message string) {
		select {
		case <-c.done:
			return
		default:
		}
		select {
		case c.queue <- pending{kind: kind, message: message}:
		default:
			c.log.WithField("type", kind).Warn("save queue full, line dropped")
		}
	}
}

func (c *Client) run() {
	defer close(c.stopped)
	for {
		select {
		case p := <-c.queue:
			c.send(p)
		case <-c.done:
			for {
				select {
				case p := <-c.queue:
					c.send(p)
				default:
					return
				}
			}
		}
	}
}

func (c *Client) send(p pending) {
	if err := c.Save(context.Background(), p.kind, p.message); err != nil {
		c.log.WithError(err).WithField("type", p.kind).Error("error saving information")
	}
}

// Close stops accepting lines and waits for queued lines to be sent
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.stopped
	return nil
}
