package stream

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/zhouzirui/hotel-checkin/backend/internal/inference"
)

// Manager 负责会话的创建、登记与关停
type Manager struct {
	opts      *Options
	engine    inference.Engine
	directory ReservationDirectory
	registry  *Registry
}

// NewManager 创建会话管理器。directory 为 nil 时识别仍然工作，
// 但确认的来宾不会进入入住编排。
func NewManager(opts *Options, engine inference.Engine, directory ReservationDirectory) *Manager {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Manager{
		opts:      opts.normalized(),
		engine:    engine,
		directory: directory,
		registry:  NewRegistry(),
	}
}

// Open 在传输层握手完成后接纳一条新会话并启动其工作循环
func (m *Manager) Open() *Session {
	s := newSession(uuid.NewString(), m.opts, m.engine, m.directory)
	s.onClose = func(sess *Session) {
		m.registry.Remove(sess.ID)
		log.Printf("[session] %s removed from registry (%d active)", sess.ID, m.registry.Len())
	}
	m.registry.Add(s)
	s.start()
	log.Printf("[session] %s opened (%d active)", s.ID, m.registry.Len())
	return s
}

// Get 按ID查找活跃会话
func (m *Manager) Get(id string) (*Session, bool) {
	return m.registry.Get(id)
}

// Registry 暴露会话表供指标端点使用
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Shutdown 关闭全部会话并等待其退出，ctx 到期则放弃等待
func (m *Manager) Shutdown(ctx context.Context) {
	sessions := m.registry.all()
	for _, s := range sessions {
		s.Close()
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			log.Printf("[session] shutdown wait aborted: %v", ctx.Err())
			return
		}
	}
}
