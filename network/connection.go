// network/connection.go
package network

import (
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrShortPacket is returned when a frame is too small to carry the header.
var ErrShortPacket = errors.New("packet shorter than header")

type Packet struct {
	MsgID uint16
	Data  []byte
}

type Connection interface {
	Send(msgID uint16, data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetReadDeadline(d time.Duration)
	ReadPacket() (*Packet, error)
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

// Send 封包: 2字节消息ID + 2字节数据长度 + 数据
func (c *WSConnection) Send(msgID uint16, data []byte) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.conn.WriteMessage(websocket.BinaryMessage, packet)
}

func (c *WSConnection) ReadPacket() (*Packet, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	if len(data) < 4 {
		return nil, ErrShortPacket
	}

	length := binary.BigEndian.Uint16(data[2:4])
	if len(data) < int(4+length) {
		return nil, ErrShortPacket
	}

	return &Packet{
		MsgID: binary.BigEndian.Uint16(data[0:2]),
		Data:  data[4 : 4+length],
	}, nil
}

func (c *WSConnection) SetReadDeadline(d time.Duration) {
	c.conn.SetReadDeadline(time.Now().Add(d))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
