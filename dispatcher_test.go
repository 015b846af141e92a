package foanalytics

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testMessage(typ string) Message {
	return newMessage(typ, map[string]any{"n": 1}, time.Now())
}

func TestDispatchTypeIsolation(t *testing.T) {
	reg := newRegistry(quietLogger())

	var foo, bar, all []string
	reg.subscribe("foo", func(m Message) { foo = append(foo, m.Type) })
	reg.subscribe("bar", func(m Message) { bar = append(bar, m.Type) })
	reg.subscribe(Wildcard, func(m Message) { all = append(all, m.Type) })

	reg.dispatch(testMessage("foo"))
	reg.dispatch(testMessage("bar"))

	assert.Equal(t, []string{"foo"}, foo)
	assert.Equal(t, []string{"bar"}, bar)
	assert.Equal(t, []string{"foo", "bar"}, all)
}

func TestDispatchOrderTypedBeforeWildcard(t *testing.T) {
	reg := newRegistry(quietLogger())

	var order []string
	reg.subscribe("tick", func(Message) { order = append(order, "typed-1") })
	reg.subscribe(Wildcard, func(Message) { order = append(order, "wild-1") })
	reg.subscribe("tick", func(Message) { order = append(order, "typed-2") })
	reg.subscribe(Wildcard, func(Message) { order = append(order, "wild-2") })

	reg.dispatch(testMessage("tick"))

	assert.Equal(t, []string{"typed-1", "typed-2", "wild-1", "wild-2"}, order)
}

func TestUnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	reg := newRegistry(quietLogger())

	var first, second int
	unsub := reg.subscribe("evt", func(Message) { first++ })
	reg.subscribe("evt", func(Message) { second++ })

	reg.dispatch(testMessage("evt"))
	unsub()
	reg.dispatch(testMessage("evt"))

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)

	// unsubscribing twice is harmless
	unsub()
	reg.dispatch(testMessage("evt"))
	assert.Equal(t, 1, first)
	assert.Equal(t, 3, second)
}

func TestUnsubscribePrunesEmptyTypeSet(t *testing.T) {
	reg := newRegistry(quietLogger())

	unsubA := reg.subscribe("evt", func(Message) {})
	unsubB := reg.subscribe("evt", func(Message) {})

	unsubA()
	reg.mu.RLock()
	_, exists := reg.subs["evt"]
	reg.mu.RUnlock()
	require.True(t, exists)

	unsubB()
	reg.mu.RLock()
	_, exists = reg.subs["evt"]
	reg.mu.RUnlock()
	require.False(t, exists, "empty handler set must be pruned")
}

func TestSameHandlerUnderMultipleTypes(t *testing.T) {
	reg := newRegistry(quietLogger())

	var seen []string
	handler := func(m Message) { seen = append(seen, m.Type) }
	reg.subscribe("a", handler)
	unsubB := reg.subscribe("b", handler)

	reg.dispatch(testMessage("a"))
	reg.dispatch(testMessage("b"))
	unsubB()
	reg.dispatch(testMessage("b"))
	reg.dispatch(testMessage("a"))

	assert.Equal(t, []string{"a", "b", "a"}, seen)
}

func TestHandlerPanicDoesNotStopOthers(t *testing.T) {
	reg := newRegistry(quietLogger())

	var delivered []string
	reg.subscribe("evt", func(Message) { panic("boom") })
	reg.subscribe("evt", func(Message) { delivered = append(delivered, "typed") })
	reg.subscribe(Wildcard, func(Message) { delivered = append(delivered, "wild") })

	require.NotPanics(t, func() { reg.dispatch(testMessage("evt")) })
	assert.Equal(t, []string{"typed", "wild"}, delivered)
}

func TestUnsubscribeFromInsideHandler(t *testing.T) {
	reg := newRegistry(quietLogger())

	var calls int
	var unsub func()
	unsub = reg.subscribe("evt", func(Message) {
		calls++
		unsub()
	})

	reg.dispatch(testMessage("evt"))
	reg.dispatch(testMessage("evt"))

	assert.Equal(t, 1, calls)
}
