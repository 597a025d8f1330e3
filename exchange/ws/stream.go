package ws

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gohyper/exchange/types"
)

// Stream 单个订阅者的推送流
// 读循环只往内部队列追加，不会因为订阅者消费慢而阻塞；
// 队列积压超过阈值时打印告警
type Stream struct {
	sub      types.Subscription
	routeKey string

	mu      sync.Mutex
	queue   []types.InboundMessage
	warned  bool
	warnAt  int
	notify  chan struct{}
	out     chan types.InboundMessage
	done    chan struct{}
	once    sync.Once
	onClose func(*Stream)
	log     *logrus.Entry
}

func newStream(sub types.Subscription, warnAt int, onClose func(*Stream), log *logrus.Entry) *Stream {
	s := &Stream{
		sub:      sub,
		routeKey: sub.RouteKey(),
		warnAt:   warnAt,
		notify:   make(chan struct{}, 1),
		out:      make(chan types.InboundMessage),
		done:     make(chan struct{}),
		onClose:  onClose,
		log:      log,
	}
	go s.pump()
	return s
}

// Subscription 该流对应的订阅
func (s *Stream) Subscription() types.Subscription {
	return s.sub
}

// C 推送通道；流关闭后通道被关闭
func (s *Stream) C() <-chan types.InboundMessage {
	return s.out
}

// Done 流关闭时关闭
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Backlog 尚未被消费的消息数
func (s *Stream) Backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close 关闭流；最后一个同身份的流关闭时会退订
func (s *Stream) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// shutdown 会话关闭时使用，不触发退订
func (s *Stream) shutdown() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *Stream) push(msg types.InboundMessage) {
	select {
	case <-s.done:
		return
	default:
	}

	s.mu.Lock()
	s.queue = append(s.queue, msg)
	n := len(s.queue)
	warn := false
	if n >= s.warnAt && !s.warned {
		s.warned = true
		warn = true
	} else if n < s.warnAt/2 {
		s.warned = false
	}
	s.mu.Unlock()

	if warn && s.log != nil {
		s.log.Warnf("订阅者消费过慢: %s 积压 %d 条", s.routeKey, n)
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Stream) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		msg := s.queue[0]
		s.queue[0] = types.InboundMessage{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- msg:
		case <-s.done:
			return
		}
	}
}
