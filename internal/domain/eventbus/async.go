package eventbus

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"wpguard/internal/utils"
)

// AsyncEventBus 异步事件总线
//
// Publish hands the event to a bounded queue drained by a fixed worker
// pool, so a slow subscriber never blocks the request or check that raised
// the event. Events are dropped when the queue is full.
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
	pending   sync.WaitGroup
	dropped   atomic.Int64
	logger    *utils.Logger
	startOnce sync.Once
	stopOnce  sync.Once
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

// NewAsyncEventBus 创建异步事件总线
func NewAsyncEventBus(workerNum, queueSize int, logger *utils.Logger) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	return &AsyncEventBus{
		bus:       New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, queueSize),
		stopChan:  make(chan struct{}),
		logger:    logger,
	}
}

// Start 启动异步处理
func (aeb *AsyncEventBus) Start() {
	aeb.startOnce.Do(func() {
		for i := 0; i < aeb.workerNum; i++ {
			aeb.wg.Add(1)
			go aeb.worker()
		}
	})
}

// Stop drains queued events and stops the workers.
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		aeb.pending.Wait()
		close(aeb.stopChan)
		aeb.wg.Wait()
	})
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			return
		case event := <-aeb.workChan:
			aeb.dispatch(event)
		}
	}
}

func (aeb *AsyncEventBus) dispatch(event asyncEvent) {
	defer aeb.pending.Done()
	defer func() {
		if r := recover(); r != nil && aeb.logger != nil {
			aeb.logger.ErrorTag("Event", "订阅者处理 %s 时发生 panic: %v", event.topic, r)
		}
	}()
	aeb.bus.Publish(event.topic, event.args...)
}

// Publish 异步发布事件
func (aeb *AsyncEventBus) Publish(topic string, args ...interface{}) {
	aeb.pending.Add(1)
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		aeb.pending.Done()
		aeb.dropped.Add(1)
		if aeb.logger != nil {
			aeb.logger.WarnTag("Event", "事件队列已满，丢弃事件 %s", topic)
		}
	}
}

// PublishSync 在调用方协程中同步分发事件
func (aeb *AsyncEventBus) PublishSync(topic string, args ...interface{}) {
	aeb.bus.Publish(topic, args...)
}

// Subscribe 订阅事件
func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (aeb *AsyncEventBus) Unsubscribe(topic string, handler interface{}) error {
	return aeb.bus.Unsubscribe(topic, handler)
}

// HasCallback 检查是否有订阅者
func (aeb *AsyncEventBus) HasCallback(topic string) bool {
	return aeb.bus.HasCallback(topic)
}

// Wait blocks until every queued event has been delivered.
func (aeb *AsyncEventBus) Wait() {
	aeb.pending.Wait()
}

// Dropped reports how many events were discarded because the queue was full.
func (aeb *AsyncEventBus) Dropped() int64 {
	return aeb.dropped.Load()
}
