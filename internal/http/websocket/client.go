package websocket

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type socketClient struct {
	id     uuid.UUID
	socket *websocket.Conn
}

func (client *socketClient) SendMessage(message *SocketMessage) error {
	return client.socket.WriteJSON(message)
}

// Wait blocks until the client's connection drops, returning the read
// error which closed it. Inbound frames are drained and discarded; the
// update stream is push-only and all mutations arrive over REST.
func (client *socketClient) Wait() error {
	for {
		if _, _, err := client.socket.ReadMessage(); err != nil {
			return err
		}
	}
}

func (client *socketClient) Close() {
	client.socket.Close()
}
