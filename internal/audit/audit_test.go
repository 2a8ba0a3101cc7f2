package audit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/baechuer/user-console/internal/logger"
	"github.com/baechuer/user-console/middleware"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, evt Event) error {
	return m.Called(ctx, evt).Error(0)
}

func TestNewEvent(t *testing.T) {
	ctx := middleware.WithRequestID(context.Background(), "req-9")
	evt := NewEvent(ctx, UserDeleted, "a@x.com", "u1")

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, UserDeleted, evt.Type)
	assert.Equal(t, "a@x.com", evt.Actor)
	assert.Equal(t, "u1", evt.Target)
	assert.Equal(t, "req-9", evt.RequestID)
	assert.False(t, evt.OccurredAt.IsZero())
}

func TestRecord_SwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf)
	t.Cleanup(func() { logger.InitWithWriter(&bytes.Buffer{}) })

	p := new(mockPublisher)
	p.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	assert.NotPanics(t, func() {
		Record(context.Background(), p, NewEvent(context.Background(), UserUpdated, "", "u1"))
	})
	p.AssertNumberOfCalls(t, "Publish", 1)
	assert.Contains(t, buf.String(), "audit_publish_failed")
}

func TestRecord_NilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		Record(context.Background(), nil, Event{Type: UserUpdated})
	})
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf)
	t.Cleanup(func() { logger.InitWithWriter(&bytes.Buffer{}) })

	err := LogPublisher{}.Publish(context.Background(), Event{ID: "e1", Type: UsersExported, Actor: "a@x.com"})
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), UsersExported)
	assert.Contains(t, buf.String(), "a@x.com")
}
