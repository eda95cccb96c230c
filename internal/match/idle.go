package match

import (
	"sync"
	"time"

	"github.com/AaronLay10/StageEngine/internal/events"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

// IdleSource is what the monitor polls. Session satisfies it.
type IdleSource interface {
	ID() string
	IdlePlayers(threshold time.Duration) []stage.PlayerID
	Leave(pid stage.PlayerID) stage.Code
}

// IdleMonitor removes human seats that stop sending requests.
type IdleMonitor struct {
	mu       sync.Mutex
	sessions map[string]IdleSource
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewIdleMonitor creates a monitor that evicts seats idle for longer than timeout.
func NewIdleMonitor(timeout time.Duration) *IdleMonitor {
	return &IdleMonitor{
		sessions: make(map[string]IdleSource),
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
}

// Watch starts tracking a session.
func (m *IdleMonitor) Watch(s IdleSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
}

// Forget stops tracking a session.
func (m *IdleMonitor) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Start begins the background check loop.
func (m *IdleMonitor) Start(checkInterval time.Duration) {
	m.wg.Add(1)
	go m.checkLoop(checkInterval)
}

// Stop stops the background loop and waits for it to exit.
func (m *IdleMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

func (m *IdleMonitor) checkLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check evicts idle seats once. It returns how many seats were removed.
func (m *IdleMonitor) Check() int {
	m.mu.Lock()
	sessions := make([]IdleSource, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	removed := 0
	for _, s := range sessions {
		for _, pid := range s.IdlePlayers(m.timeout) {
			events.Emit("warning", "player.idle", "idle timeout", map[string]interface{}{
				"match_id":    s.ID(),
				"player_id":   uint64(pid),
				"timeout_sec": m.timeout.Seconds(),
			})
			s.Leave(pid)
			removed++
		}
	}
	return removed
}
