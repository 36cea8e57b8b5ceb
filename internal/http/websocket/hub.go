package websocket

import (
	"context"
	"net/http"

	"github.com/cinelog/cinelog/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var log = logger.Get("WebSocket")

// SocketHub manages the websocket upgrading, connecting and pushing of
// update messages to connected clients. The hub is push-only: clients
// receive catalog and aggregation updates but all mutations travel over
// the REST surface.
type SocketHub struct {
	upgrader           *websocket.Upgrader
	clients            []*socketClient
	registerCh         chan *socketClient
	deregisterCh       chan *socketClient
	sendCh             chan *SocketMessage
	connectionCallback func() map[string]any
	running            bool
}

func NewHub() *SocketHub {
	return &SocketHub{
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		running: false,
	}
}

// WithConnectionCallback sets a callback executed each time a new client
// connects, furnishing the welcome message with the server's current
// state so the client need not wait for an update which may never come.
func (hub *SocketHub) WithConnectionCallback(callback func() map[string]any) {
	hub.connectionCallback = callback
}

// Start runs the hub loop, servicing client registration and outbound
// messages until the context is cancelled.
func (hub *SocketHub) Start(ctx context.Context) {
	if hub.running {
		log.Emit(logger.WARNING, "Attempting to start socket hub when already running! Ignoring request.\n")
		return
	} else if ctx.Err() != nil {
		log.Emit(logger.STOP, "Refusing to start socket hub as provided context is already cancelled\n")
		return
	}
	log.Emit(logger.INFO, "Opening socket hub\n")

	hub.sendCh = make(chan *SocketMessage)
	hub.registerCh = make(chan *socketClient)
	hub.deregisterCh = make(chan *socketClient)
	hub.clients = make([]*socketClient, 0)
	hub.running = true

	defer hub.close()
loop:
	for {
		select {
		case message := <-hub.sendCh:
			if message.Target != nil {
				if _, client := hub.findClient(*message.Target); client != nil {
					if err := client.SendMessage(message); err != nil {
						log.Emit(logger.ERROR, "Failed to send message to target {%v}: %v\n", message.Target, err)
					}
				} else {
					log.Emit(logger.WARNING, "Attempted to send message to target {%v}, but no matching client was found\n", message.Target)
				}

				break
			}

			hub.broadcastMessage(message)
		case client := <-hub.registerCh:
			hub.clients = append(hub.clients, client)
			log.Emit(logger.NEW, "Registered new client {%v}\n", client.id)
		case client := <-hub.deregisterCh:
			if idx, _ := hub.findClient(client.id); idx != -1 {
				hub.clients = append(hub.clients[:idx], hub.clients[idx+1:]...)
				log.Emit(logger.REMOVE, "Deregistered client {%v}\n", client.id)

				break
			}

			log.Emit(logger.WARNING, "Attempted to deregister unknown client {%v}\n", client.id)
		case <-ctx.Done():
			log.Emit(logger.REMOVE, "Shutting down socket hub! Closing all clients.\n")
			break loop
		}
	}
}

// Send emits the message on the hub's send channel; a message with a
// Target only reaches the client with a matching ID. Ignored when the hub
// is not running.
func (hub *SocketHub) Send(message *SocketMessage) {
	if !hub.running {
		log.Emit(logger.WARNING, "Attempted to send message via socket hub, however the hub is offline. Ignoring message.\n")
		return
	}

	hub.sendCh <- message
}

// UpgradeToSocket upgrades the HTTP request to a websocket, registers the
// new client and blocks servicing it until the connection drops.
func (hub *SocketHub) UpgradeToSocket(w http.ResponseWriter, r *http.Request) {
	if !hub.running {
		log.Emit(logger.ERROR, "Failed to upgrade incoming HTTP request to a websocket: socket hub has not been started!\n")
		return
	}

	sock, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Emit(logger.ERROR, "Failed to upgrade incoming HTTP request to a websocket: %v\n", err)
		return
	}

	client := &socketClient{id: uuid.New(), socket: sock}
	hub.registerCh <- client

	body := map[string]any{}
	if hub.connectionCallback != nil {
		body = hub.connectionCallback()
	}
	body["client"] = client.id

	hub.Send(&SocketMessage{
		Title:  "CONNECTION_ESTABLISHED",
		Body:   body,
		Target: &client.id,
		Type:   Welcome,
	})

	defer func() {
		hub.deregisterCh <- client
		client.Close()
	}()

	if err := client.Wait(); err != nil {
		log.Emit(logger.DEBUG, "Client {%v} closed: %v\n", client.id, err)
	}
}

func (hub *SocketHub) close() {
	if !hub.running {
		return
	}

	for _, client := range hub.clients {
		client.Close()
	}

	hub.clients = nil
	hub.running = false
	log.Emit(logger.STOP, "Socket hub is now closed\n")
}

func (hub *SocketHub) findClient(id uuid.UUID) (int, *socketClient) {
	for idx, client := range hub.clients {
		if client.id == id {
			return idx, client
		}
	}

	return -1, nil
}

func (hub *SocketHub) broadcastMessage(message *SocketMessage) {
	for _, client := range hub.clients {
		if err := client.SendMessage(message); err != nil {
			log.Emit(logger.ERROR, "Failed to broadcast to client {%v}: %v\n", client.id, err)
		}
	}
}
