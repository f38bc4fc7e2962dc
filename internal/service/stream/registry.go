package stream

import "sync"

// Registry 进程级会话表，用于指标采集与强制清理。
// 会话相互独立地创建和销毁，所有操作都有互斥保护。
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry 创建空会话表
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add 登记会话；同ID的旧会话先被关闭
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	old, exists := r.sessions[s.ID]
	r.sessions[s.ID] = s
	r.mu.Unlock()

	if exists {
		old.Close()
	}
}

// Get 按ID查找会话
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove 从表中移除会话（不关闭，关闭由会话自身收尾触发）
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len 当前活跃会话数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot 所有会话的指标快照
func (r *Registry) Snapshot() []Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Stats, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Stats())
	}
	return out
}

// CloseAll 关闭全部会话（管理端关停）
func (r *Registry) CloseAll() {
	for _, s := range r.all() {
		s.Close()
	}
}

func (r *Registry) all() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
