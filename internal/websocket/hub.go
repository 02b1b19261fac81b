package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/xunlong/api/internal/model"
	"github.com/xunlong/api/internal/queue"
)

// Client represents a WebSocket subscriber for one task.
type Client struct {
	TaskID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans task progress out to WebSocket subscribers. Progress is read
// from the task record on disk, so updates written by a standalone worker
// process reach subscribers of this process too.
type Hub struct {
	queue  *queue.Queue
	logger *slog.Logger

	clients  map[string]map[*Client]bool
	watching map[string]chan struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	taskID  string
	message []byte
}

// NewHub creates a hub over the given queue.
func NewHub(q *queue.Queue, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		queue:      q,
		logger:     logger,
		clients:    make(map[string]map[*Client]bool),
		watching:   make(map[string]chan struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.TaskID] == nil {
				h.clients[client.TaskID] = make(map[*Client]bool)
			}
			h.clients[client.TaskID][client] = true
			if _, ok := h.watching[client.TaskID]; !ok {
				stop := make(chan struct{})
				h.watching[client.TaskID] = stop
				go h.watchTask(client.TaskID, stop)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.TaskID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.TaskID)
						if stop, ok := h.watching[client.TaskID]; ok {
							close(stop)
							delete(h.watching, client.TaskID)
						}
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.taskID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// watchTask polls the task record and broadcasts every observed change.
// It exits once the task reaches a terminal status. A handful of misses are
// tolerated before the watcher gives up: a standalone worker process briefly
// holds the record under its claim name while taking it.
func (h *Hub) watchTask(taskID string, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastProgress, lastStatus = -1, model.TaskStatus("")
	misses := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		task, err := h.queue.Get(taskID)
		if err != nil {
			misses++
			if misses >= 3 {
				h.broadcastError(taskID, "Task not found")
				return
			}
			continue
		}
		misses = 0

		if task.Progress != lastProgress || task.Status != lastStatus {
			lastProgress, lastStatus = task.Progress, task.Status
			h.broadcastProgress(task)
		}

		if task.Status.IsTerminal() {
			h.broadcastTerminal(task)
			return
		}
	}
}

func (h *Hub) broadcastProgress(task *model.Task) {
	h.send(task.ID, model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		TaskID:      task.ID,
		Progress:    task.Progress,
		Status:      task.Status,
		CurrentStep: task.CurrentStep,
	})
}

func (h *Hub) broadcastTerminal(task *model.Task) {
	switch task.Status {
	case model.TaskStatusCompleted:
		var result interface{}
		if len(task.Result) > 0 {
			result = json.RawMessage(task.Result)
		}
		h.send(task.ID, model.WSCompleteMessage{
			Type:   model.WSMessageTypeComplete,
			TaskID: task.ID,
			Result: result,
		})
	case model.TaskStatusFailed:
		msg := "task failed"
		if task.Error != nil {
			msg = *task.Error
		}
		h.broadcastError(task.ID, msg)
	}
}

func (h *Hub) broadcastError(taskID, message string) {
	h.send(taskID, model.WSErrorMessage{
		Type:    model.WSMessageTypeError,
		TaskID:  taskID,
		Message: message,
	})
}

func (h *Hub) send(taskID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("failed to marshal ws message", "task", taskID, "error", err)
		return
	}
	h.broadcast <- &broadcastMessage{taskID: taskID, message: data}
}

// HandleConnection serves one WebSocket subscriber until it disconnects.
func (h *Hub) HandleConnection(c *websocket.Conn, taskID string) {
	client := &Client{
		TaskID: taskID,
		Conn:   c,
		Send:   make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket closed", "task", taskID, "error", err)
			}
			break
		}
	}
}
