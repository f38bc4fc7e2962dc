package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhouzirui/hotel-checkin/backend/internal/codec"
	"github.com/zhouzirui/hotel-checkin/backend/internal/inference"
	"github.com/zhouzirui/hotel-checkin/backend/internal/model/face"
	reservationmodel "github.com/zhouzirui/hotel-checkin/backend/internal/model/reservation"
	"github.com/zhouzirui/hotel-checkin/backend/internal/service/checkin"
	"github.com/zhouzirui/hotel-checkin/backend/internal/service/recognition"
	reservationapi "github.com/zhouzirui/hotel-checkin/backend/internal/service/reservation"
)

// ErrNoOrchestration 会话当前没有确认的来宾
var ErrNoOrchestration = errors.New("no confirmed guest for session")

// degradedThreshold 连续推理超时达到该值后会话进入降级状态
const degradedThreshold = 3

// ReservationDirectory 预订系统协作接口：按身份查询预订 + 提交动作
type ReservationDirectory interface {
	checkin.Client
	LookupByEmail(ctx context.Context, email string) ([]reservationmodel.Reservation, error)
}

// State 会话生命周期状态
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// frame 一帧入站图像，随接收分配递增序号
type frame struct {
	seq        uint64
	data       []byte
	receivedAt time.Time
}

type inferenceResult struct {
	seq   uint64
	batch []face.Detection
	scale float64
	err   error
}

type controlKind int

const (
	controlOrchestrationDone controlKind = iota
)

type controlEvent struct {
	kind   controlKind
	action checkin.Action
}

// Session 一条流式识别会话。入站帧经 解码→推理→聚合 流水线处理，
// 结果在出站方向推送。会话内的帧按到达顺序处理，同一时刻至多一次
// 推理调用在途（最新帧覆盖待处理槽位），这是系统的背压策略。
//
// 聚合器与编排生命周期仅由会话自己的工作循环驱动；
// 入住/退房提交来自HTTP请求goroutine，经编排自身的互斥保护。
type Session struct {
	ID        string
	CreatedAt time.Time

	opts      *Options
	engine    inference.Engine
	directory ReservationDirectory

	frames   chan frame
	outbound chan []byte
	notices  chan []byte
	control  chan controlEvent

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	agg *recognition.Aggregator

	state        atomic.Int32
	nextSeq      atomic.Uint64
	lastActivity atomic.Int64
	degraded     atomic.Bool
	received     atomic.Uint64
	dropped      atomic.Uint64
	processed    atomic.Uint64

	// 仅工作循环访问
	lastAdmitted time.Time
	timeouts     int

	mu   sync.Mutex
	orch *checkin.Orchestration

	onClose func(*Session)
}

func newSession(id string, opts *Options, engine inference.Engine, directory ReservationDirectory) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		opts:      opts,
		engine:    engine,
		directory: directory,
		frames:    make(chan frame, 4),
		outbound:  make(chan []byte, 1),
		notices:   make(chan []byte, 4),
		control:   make(chan controlEvent, 4),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		agg:       recognition.NewAggregator(opts.Recognition),
	}
	s.state.Store(int32(StateConnecting))
	s.touch()
	return s
}

// start 握手完成后进入 Active 并启动工作循环
func (s *Session) start() {
	s.state.Store(int32(StateActive))
	go s.run()
}

// Submit 递交一帧入站图像，由传输层读泵调用。
// 队列满时丢帧而不是阻塞读泵，返回是否已入队。
func (s *Session) Submit(data []byte) bool {
	s.received.Add(1)
	s.touch()

	f := frame{
		seq:        s.nextSeq.Add(1),
		data:       data,
		receivedAt: time.Now(),
	}
	select {
	case s.frames <- f:
		return true
	case <-s.ctx.Done():
		return false
	default:
		s.dropped.Add(1)
		return false
	}
}

// Outbound 每处理完一帧推送一条结果数组；只保留最新一条
func (s *Session) Outbound() <-chan []byte {
	return s.outbound
}

// Notices 会话级状态通知（降级、动作完成等）
func (s *Session) Notices() <-chan []byte {
	return s.notices
}

// Done 工作循环退出后关闭
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State 当前生命周期状态
func (s *Session) State() State {
	return State(s.state.Load())
}

// Degraded 是否处于推理降级状态
func (s *Session) Degraded() bool {
	return s.degraded.Load()
}

// Close 主动关闭会话（客户端断开或管理端清理）
func (s *Session) Close() {
	s.beginClose("close requested")
}

// Orchestration 当前打开的编排，没有确认来宾时为 nil
func (s *Session) Orchestration() *checkin.Orchestration {
	return s.orchestration()
}

// SubmitCheckIn 为确认来宾的预订提交入住动作，由HTTP处理器调用
func (s *Session) SubmitCheckIn(ctx context.Context, reservationID string) error {
	return s.submitAction(ctx, reservationID, checkin.ActionCheckIn)
}

// SubmitCheckOut 为确认来宾的预订提交退房动作
func (s *Session) SubmitCheckOut(ctx context.Context, reservationID string) error {
	return s.submitAction(ctx, reservationID, checkin.ActionCheckOut)
}

// Dismiss 来宾关闭了预订选择框：清除编排并重新武装聚合器
func (s *Session) Dismiss() error {
	orch := s.orchestration()
	if orch == nil {
		return ErrNoOrchestration
	}
	orch.Close()
	s.signal(controlEvent{kind: controlOrchestrationDone, action: checkin.ActionDismiss})
	return nil
}

func (s *Session) submitAction(ctx context.Context, reservationID string, action checkin.Action) error {
	orch := s.orchestration()
	if orch == nil {
		return ErrNoOrchestration
	}

	var err error
	switch action {
	case checkin.ActionCheckIn:
		err = orch.SubmitCheckIn(ctx, reservationID)
	case checkin.ActionCheckOut:
		err = orch.SubmitCheckOut(ctx, reservationID)
	}
	if err != nil {
		return err
	}

	s.signal(controlEvent{kind: controlOrchestrationDone, action: action})
	return nil
}

// run 会话工作循环：帧准入、推理单飞、结果合并、空闲超时
func (s *Session) run() {
	defer s.finish()

	idle := time.NewTimer(s.opts.IdleTimeout)
	defer idle.Stop()

	results := make(chan inferenceResult, 1)
	var pending *frame
	inflight := false

	for {
		select {
		case <-s.ctx.Done():
			s.beginClose("context cancelled")
			s.drainInflight(results, inflight)
			return

		case <-idle.C:
			s.beginClose("idle timeout")
			s.drainInflight(results, inflight)
			return

		case f := <-s.frames:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(s.opts.IdleTimeout)

			if !s.admit(f.receivedAt) {
				s.dropped.Add(1)
				continue
			}
			if inflight {
				// 推理在途：最新帧覆盖待处理槽位，被覆盖的帧直接丢弃
				if pending != nil {
					s.dropped.Add(1)
				}
				f := f
				pending = &f
				continue
			}
			inflight = true
			go s.infer(f, results)

		case res := <-results:
			inflight = false
			s.handleResult(res)
			if pending != nil {
				next := *pending
				pending = nil
				inflight = true
				go s.infer(next, results)
			}

		case ev := <-s.control:
			s.handleControl(ev)
		}
	}
}

// admit 最小帧间隔准入控制
func (s *Session) admit(arrived time.Time) bool {
	if s.opts.MinFrameInterval > 0 && !s.lastAdmitted.IsZero() &&
		arrived.Sub(s.lastAdmitted) < s.opts.MinFrameInterval {
		return false
	}
	s.lastAdmitted = arrived
	return true
}

// infer 在独立goroutine中执行 解码→降采样→推理，结果回投给工作循环。
// 同一会话至多一次调用在途，由工作循环保证。
func (s *Session) infer(f frame, results chan<- inferenceResult) {
	img, err := codec.Decode(f.data, s.opts.MaxFrameBytes)
	if err != nil {
		results <- inferenceResult{seq: f.seq, err: err}
		return
	}

	img, scale := codec.Downscale(img, s.opts.InferenceMaxDim)

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.InferenceTimeout)
	defer cancel()

	batch, err := s.engine.Detect(ctx, img)
	results <- inferenceResult{seq: f.seq, batch: batch, scale: scale, err: err}
}

func (s *Session) handleResult(res inferenceResult) {
	if res.err != nil {
		switch {
		case errors.Is(res.err, codec.ErrMalformed), errors.Is(res.err, codec.ErrTooLarge):
			// 坏帧只丢弃，不影响会话，也不产生出站消息
			log.Printf("[session] %s dropped frame %d: %v", s.ID, res.seq, res.err)
			s.dropped.Add(1)
			return
		case errors.Is(res.err, inference.ErrTimeout):
			s.timeouts++
			if s.timeouts >= degradedThreshold && !s.degraded.Load() {
				s.degraded.Store(true)
				log.Printf("[session] %s degraded after %d consecutive inference timeouts", s.ID, s.timeouts)
				s.notify(map[string]any{"type": "status", "event": "degraded"})
			}
		default:
			log.Printf("[session] %s inference failed for frame %d: %v", s.ID, res.seq, res.err)
		}
		// 超时或推理失败按空批次继续
		res.batch = nil
	} else {
		s.timeouts = 0
		if s.degraded.Swap(false) {
			s.notify(map[string]any{"type": "status", "event": "recovered"})
		}
	}

	s.processed.Add(1)

	batch := rescale(res.batch, res.scale)
	results := make([]face.Result, 0, len(batch))
	for _, d := range batch {
		results = append(results, face.Result{Detection: d})
	}

	if confirmed, ok := s.agg.Observe(batch); ok {
		s.confirm(confirmed, results)
	}

	payload, err := json.Marshal(results)
	if err != nil {
		log.Printf("[session] %s encode results failed: %v", s.ID, err)
		return
	}
	s.push(payload)
}

// confirm 对聚合器确认的来宾查询预订并开启编排。
// 查询不到账号或没有预订时放弃本次确认，聚合器立即恢复。
func (s *Session) confirm(guest face.Detection, results []face.Result) {
	if s.orchestration() != nil {
		return
	}
	if s.directory == nil {
		log.Printf("[checkin] %s confirmed %s but reservation directory is not configured", s.ID, guest.Name)
		s.agg.Reset()
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.LookupTimeout)
	defer cancel()

	list, err := s.directory.LookupByEmail(ctx, guest.Email)
	if err != nil {
		if errors.Is(err, reservationapi.ErrNoAccount) {
			log.Printf("[checkin] %s confirmed %s has no account, resuming", s.ID, guest.Name)
		} else {
			log.Printf("[checkin] %s reservation lookup for %s failed: %v", s.ID, guest.Name, err)
		}
		s.agg.Reset()
		return
	}
	if len(list) == 0 {
		log.Printf("[checkin] %s guest %s has no reservations, resuming", s.ID, guest.Name)
		s.agg.Reset()
		return
	}

	orch := checkin.New(s.ID, guest, list, s.directory)
	s.setOrchestration(orch)
	log.Printf("[checkin] %s confirmed guest %s with %d reservation(s)", s.ID, guest.Name, len(list))

	for i := range results {
		if results[i].Name == guest.Name {
			results[i].Reservations = orch.Reservations()
			break
		}
	}
}

func (s *Session) handleControl(ev controlEvent) {
	switch ev.kind {
	case controlOrchestrationDone:
		s.setOrchestration(nil)
		s.agg.Reset()
		if ev.action != checkin.ActionDismiss {
			s.notify(map[string]any{
				"type":   "status",
				"event":  "action_completed",
				"action": string(ev.action),
			})
		}
	}
}

// push 出站槽位只保留最新一条结果，慢客户端不会拖住工作循环
func (s *Session) push(payload []byte) {
	for {
		select {
		case s.outbound <- payload:
			return
		default:
		}
		select {
		case <-s.outbound:
		default:
		}
	}
}

func (s *Session) notify(v map[string]any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case s.notices <- payload:
	default:
		log.Printf("[session] %s notice buffer full, dropping", s.ID)
	}
}

func (s *Session) signal(ev controlEvent) {
	select {
	case s.control <- ev:
	case <-s.done:
		// 工作循环已退出，直接清理
		s.setOrchestration(nil)
	}
}

func (s *Session) beginClose(reason string) {
	if s.state.CompareAndSwap(int32(StateActive), int32(StateClosing)) {
		log.Printf("[session] %s closing: %s", s.ID, reason)
	}
	s.cancel()
}

// drainInflight 关闭时等待在途推理，宽限期后放弃，绝不无限阻塞
func (s *Session) drainInflight(results <-chan inferenceResult, inflight bool) {
	if !inflight {
		return
	}
	select {
	case <-results:
	case <-time.After(s.opts.CloseGrace):
		log.Printf("[session] %s abandoning in-flight inference", s.ID)
	}
}

func (s *Session) finish() {
	if orch := s.orchestration(); orch != nil {
		orch.Close()
		s.setOrchestration(nil)
	}
	s.state.Store(int32(StateClosed))
	close(s.done)
	if s.onClose != nil {
		s.onClose(s)
	}
	log.Printf("[session] %s closed", s.ID)
}

func (s *Session) orchestration() *checkin.Orchestration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orch
}

func (s *Session) setOrchestration(o *checkin.Orchestration) {
	s.mu.Lock()
	s.orch = o
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Stats 会话运行指标快照
type Stats struct {
	ID              string    `json:"id"`
	State           string    `json:"state"`
	Degraded        bool      `json:"degraded"`
	FramesReceived  uint64    `json:"framesReceived"`
	FramesDropped   uint64    `json:"framesDropped"`
	FramesProcessed uint64    `json:"framesProcessed"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActivity    time.Time `json:"lastActivity"`
}

// Stats 返回当前指标
func (s *Session) Stats() Stats {
	return Stats{
		ID:              s.ID,
		State:           s.State().String(),
		Degraded:        s.degraded.Load(),
		FramesReceived:  s.received.Load(),
		FramesDropped:   s.dropped.Load(),
		FramesProcessed: s.processed.Load(),
		CreatedAt:       s.CreatedAt,
		LastActivity:    time.Unix(0, s.lastActivity.Load()).UTC(),
	}
}

// rescale 把降采样空间的包围盒换算回原始帧像素空间
func rescale(batch []face.Detection, scale float64) []face.Detection {
	if scale == 0 || scale == 1 {
		return batch
	}
	out := make([]face.Detection, len(batch))
	for i, d := range batch {
		for j, v := range d.BBox {
			d.BBox[j] = int(float64(v) / scale)
		}
		out[i] = d
	}
	return out
}
