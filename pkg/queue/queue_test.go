package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryQueue(t *testing.T) {
	q := NewInMemoryQueue(2)

	assert.NoError(t, q.Enqueue("a"))
	assert.NoError(t, q.Enqueue("b"))
	assert.Error(t, q.Enqueue("c"), "queue is full")
	assert.Equal(t, 2, q.Size())

	items, err := q.ReadAllMessages()
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, items)
	assert.Equal(t, 0, q.Size())

	assert.NoError(t, q.Enqueue("d"))
	q.ClearQueue()
	assert.Equal(t, 0, q.Size())
}
