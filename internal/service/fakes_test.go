package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeConn merekam panggilan outbound untuk assertion.
type fakeConn struct {
	mu         sync.Mutex
	sentTexts  []string
	sentChats  []string
	groupNames map[string]string
	groupCalls int
	closed     bool
	loggedOut  bool
	sendErr    error
	nextID     int
}

func (c *fakeConn) SendText(ctx context.Context, chatJID, text string) (string, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return "", time.Time{}, c.sendErr
	}
	c.nextID++
	c.sentChats = append(c.sentChats, chatJID)
	c.sentTexts = append(c.sentTexts, text)
	return fmt.Sprintf("srv-%d", c.nextID), time.Unix(1700000000, 0), nil
}

func (c *fakeConn) SendMedia(ctx context.Context, chatJID string, data []byte, mimetype, caption string) (string, time.Time, error) {
	return c.SendText(ctx, chatJID, caption)
}

func (c *fakeConn) GroupName(ctx context.Context, groupJID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groupCalls++
	return c.groupNames[groupJID], nil
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	c.closed = true
	return nil
}

func (c *fakeConn) groupNameCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupCalls
}

// fakeFacade merekam setiap dial berikut opsinya dan menyimpan handler
// supaya test bisa menyuntikkan transport event.
type fakeFacade struct {
	mu       sync.Mutex
	dials    []DialOptions
	handlers []EventHandler
	conns    []*fakeConn
	erased   []string
	dialErr  error

	groupNames map[string]string
}

func newFakeFacade() *fakeFacade {
	return &fakeFacade{groupNames: make(map[string]string)}
}

func (f *fakeFacade) Dial(ctx context.Context, sessionID string, opts DialOptions, handler EventHandler) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials = append(f.dials, opts)
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	conn := &fakeConn{groupNames: f.groupNames}
	f.conns = append(f.conns, conn)
	f.handlers = append(f.handlers, handler)
	return conn, nil
}

func (f *fakeFacade) EraseCredentials(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.erased = append(f.erased, sessionID)
	return nil
}

func (f *fakeFacade) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dials)
}

func (f *fakeFacade) dialOpts(i int) DialOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials[i]
}

// handler ke-i; test drive event lewat ini.
func (f *fakeFacade) handler(i int) EventHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[i]
}

func (f *fakeFacade) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

func (f *fakeFacade) erasedSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.erased))
	copy(out, f.erased)
	return out
}

// recordingSink kumpulkan event yang dipublish.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingSink) byType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// testSessionConfig delay pendek supaya test reconnect cepat.
func testSessionConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.RestartDelay = 2 * time.Millisecond
	cfg.InsecureDelay = 2 * time.Millisecond
	cfg.ReconnectDelay = 2 * time.Millisecond
	return cfg
}
