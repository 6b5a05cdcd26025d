package services

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fromelabs/chat-backend/internal/lib/smtp"
	"github.com/fromelabs/chat-backend/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Dial() (smtp.Session, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Session), args.Error(1)
}

func (m *MockTransport) From() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Quit() error {
	return m.Called().Error(0)
}

func (m *MockSMTPClient) Close() error {
	return m.Called().Error(0)
}

type writeCloserMock struct {
	strings.Builder
}

func (w *writeCloserMock) Close() error { return nil }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func marshalEvent(t *testing.T, event models.NotificationEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	assert.NoError(t, err)
	return body
}

func TestSenderService_HandleNotification_PaymentFailed(t *testing.T) {
	transport := new(MockTransport)
	client := new(MockSMTPClient)
	wc := &writeCloserMock{}

	transport.On("From").Return("noreply@example.com")
	transport.On("Dial").Return(client, nil)
	client.On("Mail", "noreply@example.com").Return(nil)
	client.On("Rcpt", "user@example.com").Return(nil)
	client.On("Data").Return(wc, nil)
	client.On("Quit").Return(nil)
	client.On("Close").Return(nil)

	svc := NewSenderService(newNoopLogger(), transport)
	err := svc.HandleNotification(marshalEvent(t, models.NotificationEvent{
		Kind:  models.NotificationPaymentFailed,
		Email: "user@example.com",
		Name:  "Alice",
		Plan:  "PRO",
	}))

	assert.NoError(t, err)
	assert.Contains(t, wc.String(), "Не удалось продлить подписку")
	assert.Contains(t, wc.String(), "Alice")
	client.AssertExpectations(t)
}

func TestSenderService_HandleNotification_SubscriptionCanceled(t *testing.T) {
	transport := new(MockTransport)
	client := new(MockSMTPClient)
	wc := &writeCloserMock{}

	transport.On("From").Return("noreply@example.com")
	transport.On("Dial").Return(client, nil)
	client.On("Mail", "noreply@example.com").Return(nil)
	client.On("Rcpt", "user@example.com").Return(nil)
	client.On("Data").Return(wc, nil)
	client.On("Quit").Return(nil)
	client.On("Close").Return(nil)

	svc := NewSenderService(newNoopLogger(), transport)
	err := svc.HandleNotification(marshalEvent(t, models.NotificationEvent{
		Kind:  models.NotificationSubscriptionCanceled,
		Email: "user@example.com",
		Name:  "Bob",
	}))

	assert.NoError(t, err)
	assert.Contains(t, wc.String(), "Подписка отменена")
}

func TestSenderService_HandleNotification_UnknownKind(t *testing.T) {
	transport := new(MockTransport)

	svc := NewSenderService(newNoopLogger(), transport)
	err := svc.HandleNotification(marshalEvent(t, models.NotificationEvent{
		Kind:  "something_else",
		Email: "user@example.com",
	}))

	assert.NoError(t, err)
	transport.AssertNotCalled(t, "Dial")
}

func TestSenderService_HandleNotification_BadPayload(t *testing.T) {
	transport := new(MockTransport)

	svc := NewSenderService(newNoopLogger(), transport)
	err := svc.HandleNotification([]byte("{not json"))

	assert.Error(t, err)
}

func TestSenderService_HandleNotification_ConnectFailure(t *testing.T) {
	transport := new(MockTransport)

	transport.On("From").Return("noreply@example.com")
	transport.On("Dial").Return(nil, errors.New("dial tcp: connection refused"))

	svc := NewSenderService(newNoopLogger(), transport)
	err := svc.HandleNotification(marshalEvent(t, models.NotificationEvent{
		Kind:  models.NotificationPaymentFailed,
		Email: "user@example.com",
	}))

	assert.Error(t, err)
}
