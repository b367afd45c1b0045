package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Publisher is the narrow view domain services depend on.
type Publisher interface {
	Publish(topic string, args ...interface{})
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(string, ...interface{}) {}

// New 创建新的同步事件总线
func New() evbus.Bus {
	return evbus.New()
}
