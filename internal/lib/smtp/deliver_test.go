package smtp

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Mail(from string) error { return m.Called(from).Error(0) }
func (m *MockClient) Rcpt(to string) error   { return m.Called(to).Error(0) }
func (m *MockClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}
func (m *MockClient) Quit() error  { return m.Called().Error(0) }
func (m *MockClient) Close() error { return m.Called().Error(0) }

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func TestDeliver_Success(t *testing.T) {
	c := new(MockClient)
	body := &bufferCloser{}
	c.On("Mail", "bot@example.com").Return(nil)
	c.On("Rcpt", "a@example.com").Return(nil)
	c.On("Rcpt", "b@example.com").Return(nil)
	c.On("Data").Return(body, nil)
	c.On("Quit").Return(nil)

	err := deliver(c, "bot@example.com", []string{"a@example.com", "b@example.com"}, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", body.String())
	assert.True(t, body.closed)
	c.AssertExpectations(t)
	c.AssertNotCalled(t, "Close")
}

func TestDeliver_RcptErrorClosesConnection(t *testing.T) {
	c := new(MockClient)
	c.On("Mail", "bot@example.com").Return(nil)
	c.On("Rcpt", "a@example.com").Return(errors.New("550 no such user"))
	c.On("Close").Return(nil)

	err := deliver(c, "bot@example.com", []string{"a@example.com"}, []byte("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rcpt a@example.com")
	c.AssertCalled(t, "Close")
	c.AssertNotCalled(t, "Data")
}
