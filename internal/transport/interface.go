package transport

import "context"

// Connection is one client's dialogue channel. AudioIn carries raw binary
// frames (ownership transfers to the receiver), Controls carries parsed
// JSON control frames. Both channels close when the underlying transport
// goes away.
type Connection interface {
	Send(ctx context.Context, event ServerEvent) error
	SendAudio(ctx context.Context, chunk AudioChunk) error
	AudioIn() <-chan []byte
	Controls() <-chan ControlMessage
	IsConnected() bool
	Close() error
}
