package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Client 代表一个WebSocket连接的用户
// UserID: 用户ID
// Conn: WebSocket连接
// Send: 发送消息的通道

type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend 非阻塞投递；通道已关闭或缓冲已满时丢弃
// 与shutdown持同一把锁，保证不会往已关闭的通道发送
func (c *Client) trySend(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- msg:
	default:
		// 发送缓冲已满，可能连接已断开
	}
}

// shutdown 关闭发送通道让写协程退出，幂等
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Manager 管理所有在线用户的WebSocket连接
// 只做尽力而为的在线推送：用户不在线时通知直接丢弃，
// 消息本体始终以数据库状态为准，客户端上线后通过popup接口拉取

type Manager struct {
	clients map[uint]*Client // 在线用户
	lock    sync.RWMutex
}

var manager = &Manager{
	clients: make(map[uint]*Client),
}

// GetManager 获取全局WebSocket管理器
func GetManager() *Manager {
	return manager
}

// AddClient 添加新连接
func (m *Manager) AddClient(userID uint, client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	// 同一用户重复连接时关闭旧连接
	if old, ok := m.clients[userID]; ok {
		old.shutdown()
	}
	m.clients[userID] = client
}

// RemoveClient 移除连接
func (m *Manager) RemoveClient(userID uint, client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if c, ok := m.clients[userID]; ok && c == client {
		c.shutdown()
		delete(m.clients, userID)
	}
}

// SendToUser 推送消息给指定用户（不在线则丢弃）
func (m *Manager) SendToUser(userID uint, msg []byte) {
	m.lock.RLock()
	client, ok := m.clients[userID]
	m.lock.RUnlock()
	if !ok {
		return
	}
	// 拿到client后不再持有管理器的锁，投递与断开的互斥由client自己的锁保证
	client.trySend(msg)
}

// IsOnline 判断用户是否在线
func (m *Manager) IsOnline(userID uint) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.clients[userID]
	return ok
}

// NotifyRelayReady 推送"有新传话消息"通知给接收者
// 只带消息ID和变体，正文由客户端调用popup接口拉取
func (m *Manager) NotifyRelayReady(receiverID uint, variant string, messageID uint) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":       "relay_ready",
		"variant":    variant,
		"message_id": messageID,
	})
	if err != nil {
		return
	}
	m.SendToUser(receiverID, payload)
}
