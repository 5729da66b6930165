package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"relay-system/internal/model"
	"relay-system/internal/service"
	"relay-system/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRelayStore 可编程的存储桩，默认一切为空
type stubRelayStore struct {
	createErr error
	message   *model.RelayMessage
	getErr    error
}

func (s *stubRelayStore) Create(m *model.RelayMessage) error { return s.createErr }
func (s *stubRelayStore) GetByID(id uint) (*model.RelayMessage, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.message, nil
}
func (s *stubRelayStore) FindReadyForReceiver(variant string, receiverID uint) (*model.RelayMessage, error) {
	return nil, nil
}
func (s *stubRelayStore) CountBySenderSince(variant string, senderID uint, since time.Time) (int64, error) {
	return 0, nil
}
func (s *stubRelayStore) FindLatestBySender(variant string, senderID uint) (*model.RelayMessage, error) {
	return nil, nil
}
func (s *stubRelayStore) FindByPairing(variant string, pairingID uint, limit, offset int) ([]*model.RelayMessage, int64, error) {
	return nil, 0, nil
}
func (s *stubRelayStore) ExistsBySenderAndPeriod(variant string, senderID uint, periodKey string) (bool, error) {
	return false, nil
}
func (s *stubRelayStore) FindUnreadForReceiver(variant string, receiverID uint) ([]*model.RelayMessage, error) {
	return nil, nil
}
func (s *stubRelayStore) MarkProcessed(id uint, refinedText string, at time.Time) (bool, error) {
	return true, nil
}
func (s *stubRelayStore) MarkDelivered(id, receiverID uint, at time.Time) (bool, error) {
	return true, nil
}
func (s *stubRelayStore) MarkRead(id, receiverID uint, at time.Time) (bool, error) {
	return true, nil
}
func (s *stubRelayStore) FindStalePending(before time.Time, limit int) ([]*model.RelayMessage, error) {
	return nil, nil
}

type stubPairings struct{}

func (stubPairings) FindActiveByUser(userID uint) (*model.Pairing, error) {
	return &model.Pairing{ID: 1, User1ID: 1, User2ID: 2, Status: model.PairingConnected}, nil
}

type stubUsers struct{}

func (stubUsers) GetByID(id uint) (*model.User, error) { return &model.User{ID: id}, nil }

type stubLocker struct{}

func (stubLocker) Acquire(variant string, senderID uint, ttlSeconds int) (bool, error) {
	return true, nil
}
func (stubLocker) Release(variant string, senderID uint) error { return nil }

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(messageID uint) error { return nil }

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) }

func newHandler(store *stubRelayStore) *RelayHandler {
	rules := service.VariantRules{Variant: model.VariantPassAlong, MinLength: 5, MaxLength: 1000}
	svc := service.NewRelayService(rules, store, stubPairings{}, stubUsers{}, stubLocker{}, stubClock{})
	svc.SetDispatcher(stubDispatcher{})
	return NewRelayHandler(svc)
}

// doJSON 以已认证用户1执行一次请求，返回响应信封里的code
func doJSON(t *testing.T, handle gin.HandlerFunc, method, path, body string, params gin.Params) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	c.Set(jwt.ContextUserIDKey, "1")

	handle(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Code
}

func TestRelayHandler_ErrorMapping(t *testing.T) {
	t.Run("length violation is a 400", func(t *testing.T) {
		h := newHandler(&stubRelayStore{})
		code := doJSON(t, h.Create, http.MethodPost, "/api/v1/relay/messages", `{"text":"短"}`, nil)
		assert.Equal(t, 400, code)
	})

	t.Run("store failure on create is a 500, not echoed as 400", func(t *testing.T) {
		h := newHandler(&stubRelayStore{createErr: errors.New("db down")})
		code := doJSON(t, h.Create, http.MethodPost, "/api/v1/relay/messages", `{"text":"一条足够长的消息"}`, nil)
		assert.Equal(t, 500, code)
	})

	t.Run("wrong status ack is a 400", func(t *testing.T) {
		h := newHandler(&stubRelayStore{message: &model.RelayMessage{
			ID: 1, Variant: model.VariantPassAlong, ReceiverID: 1,
			Status: model.RelayStatusPending,
		}})
		code := doJSON(t, h.AckRead, http.MethodPut, "/api/v1/relay/messages/1/read", "",
			gin.Params{{Key: "id", Value: "1"}})
		assert.Equal(t, 400, code)
	})

	t.Run("store failure on ack is a 500", func(t *testing.T) {
		h := newHandler(&stubRelayStore{getErr: errors.New("db down")})
		code := doJSON(t, h.AckRead, http.MethodPut, "/api/v1/relay/messages/1/read", "",
			gin.Params{{Key: "id", Value: "1"}})
		assert.Equal(t, 500, code)
	})

	t.Run("missing message is a 404", func(t *testing.T) {
		h := newHandler(&stubRelayStore{getErr: service.ErrNotFound})
		code := doJSON(t, h.AckDelivered, http.MethodPut, "/api/v1/relay/messages/1/delivered", "",
			gin.Params{{Key: "id", Value: "1"}})
		assert.Equal(t, 404, code)
	})
}
