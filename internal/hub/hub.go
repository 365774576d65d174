// Package hub tracks the live room sessions so the server can shut them
// down together. Sessions are otherwise independent: each one subscribes to
// the store on its own.
package hub

import (
	"context"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/session"
)

type HubMsg interface{ isHubMsg() }

type Register struct {
	Session *session.Session
}

type Deregister struct {
	ID string
}

type GetCount struct {
	Reply chan int
}

type ShutdownHub struct{}

func (Register) isHubMsg()    {}
func (Deregister) isHubMsg()  {}
func (GetCount) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Register:
				h.sessions[msg.Session.ID] = msg.Session

			case Deregister:
				delete(h.sessions, msg.ID)

			case GetCount:
				msg.Reply <- len(h.sessions)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, s := range h.sessions {
		s.Inbox() <- session.Shutdown{}
		delete(h.sessions, id)
	}
	h.cancel()
}
