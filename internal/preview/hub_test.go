package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHub_ConsoleEvents(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe("p1")
	defer cancel()
	other, cancelOther := h.Subscribe("p2")
	defer cancelOther()

	h.Log("p1", "warn", "careful")

	ev := <-ch
	assert.Equal(t, EventConsole, ev.Type)
	assert.Equal(t, "p1", ev.ProjectID)
	require.NotNil(t, ev.Entry)
	assert.Equal(t, TypeWarning, ev.Entry.Type)
	assert.Equal(t, "careful", ev.Entry.Message)
	assert.Len(t, other, 0)
	assert.Equal(t, 1, h.Console("p1").Len())
	assert.Equal(t, 0, h.Console("p2").Len())
}

func TestHub_Reload(t *testing.T) {
	h := NewHub(10)
	a, cancelA := h.Subscribe("p1")
	b, cancelB := h.Subscribe("p1")
	defer cancelA()
	defer cancelB()
	assert.Equal(t, 2, h.Subscribers("p1"))

	h.Reload("p1")
	assert.Equal(t, EventReload, (<-a).Type)
	assert.Equal(t, EventReload, (<-b).Type)
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	h := NewHub(1000)
	ch, cancel := h.Subscribe("p1")
	defer cancel()
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Log("p1", "log", "x")
	}
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, subscriberBuffer+5, h.Console("p1").Len())
}

func TestHub_CancelAndForget(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe("p1")
	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers("p1"))

	ch, cancel = h.Subscribe("p1")
	h.Log("p1", "log", "x")
	h.Forget("p1")
	<-ch
	_, open = <-ch
	assert.False(t, open)
	cancel()
	assert.Equal(t, 0, h.Console("p1").Len())
}
