package response

import (
	"net/http"
	"time"

	"relay-system/internal/model"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`            // 状态码：0表示成功，其他表示错误
	Message string      `json:"message"`         // 响应消息
	Data    interface{} `json:"data,omitempty"`  // 响应数据
	Error   string      `json:"error,omitempty"` // 错误详情（仅在开发环境显示）
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData 带附加数据的错误响应（例如限频时返回下次可用时间）
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// BadRequest 400错误
func BadRequest(c *gin.Context, message string) {
	Error(c, 400, message)
}

// Unauthorized 401错误
func Unauthorized(c *gin.Context, message string) {
	Error(c, 401, message)
}

// Forbidden 403错误
func Forbidden(c *gin.Context, message string) {
	Error(c, 403, message)
}

// NotFound 404错误
func NotFound(c *gin.Context, message string) {
	Error(c, 404, message)
}

// TooManyRequests 429错误（准入被拒：限频/时间窗/周期已用）
func TooManyRequests(c *gin.Context, message string, data interface{}) {
	ErrorWithData(c, 429, message, data)
}

// InternalError 500错误
func InternalError(c *gin.Context, message string) {
	Error(c, 500, message)
}

const timeLayout = "2006-01-02 15:04:05"

// formatTime 可空时间统一格式化
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

// UserInfo 用户信息（隐藏敏感字段）
type UserInfo struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar"`
	CreatedAt string `json:"created_at"`
}

// FilterUserInfo 过滤用户信息，隐藏敏感字段
func FilterUserInfo(user *model.User) *UserInfo {
	if user == nil {
		return nil
	}

	return &UserInfo{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Nickname:  user.Nickname,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt.Format(timeLayout),
	}
}

// LoginResponse 登录响应
type LoginResponse struct {
	User        *UserInfo `json:"user"`
	AccessToken string    `json:"access_token"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	User        *UserInfo `json:"user"`
	AccessToken string    `json:"access_token"`
}

// PairingInfo 配对信息
type PairingInfo struct {
	ID        uint   `json:"id"`
	User1ID   uint   `json:"user1_id"`
	User2ID   uint   `json:"user2_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// FilterPairingInfo 过滤配对信息
func FilterPairingInfo(p *model.Pairing) *PairingInfo {
	if p == nil {
		return nil
	}
	return &PairingInfo{
		ID:        p.ID,
		User1ID:   p.User1ID,
		User2ID:   p.User2ID,
		Status:    p.Status,
		CreatedAt: p.CreatedAt.Format(timeLayout),
	}
}

// RelayMessageInfo 传话消息完整视图（发送者与历史记录用）
type RelayMessageInfo struct {
	ID           uint   `json:"id"`
	Variant      string `json:"variant"`
	PairingID    uint   `json:"pairing_id"`
	SenderID     uint   `json:"sender_id"`
	ReceiverID   uint   `json:"receiver_id"`
	OriginalText string `json:"original_text"`
	RefinedText  string `json:"refined_text"`
	Status       string `json:"status"`
	IsRead       bool   `json:"is_read"`
	PeriodKey    string `json:"period_key,omitempty"`
	CreatedAt    string `json:"created_at"`
	ProcessedAt  string `json:"processed_at,omitempty"`
	DeliveredAt  string `json:"delivered_at,omitempty"`
	ReadAt       string `json:"read_at,omitempty"`
}

// FilterRelayMessage 过滤传话消息信息
func FilterRelayMessage(m *model.RelayMessage) *RelayMessageInfo {
	if m == nil {
		return nil
	}

	periodKey := ""
	if m.PeriodKey != nil {
		periodKey = *m.PeriodKey
	}

	return &RelayMessageInfo{
		ID:           m.ID,
		Variant:      m.Variant,
		PairingID:    m.PairingID,
		SenderID:     m.SenderID,
		ReceiverID:   m.ReceiverID,
		OriginalText: m.OriginalText,
		RefinedText:  m.RefinedText,
		Status:       m.Status,
		IsRead:       m.IsRead,
		PeriodKey:    periodKey,
		CreatedAt:    m.CreatedAt.Format(timeLayout),
		ProcessedAt:  formatTime(m.ProcessedAt),
		DeliveredAt:  formatTime(m.DeliveredAt),
		ReadAt:       formatTime(m.ReadAt),
	}
}

// FilterRelayMessages 批量过滤传话消息
func FilterRelayMessages(messages []*model.RelayMessage) []*RelayMessageInfo {
	infos := make([]*RelayMessageInfo, 0, len(messages))
	for _, m := range messages {
		infos = append(infos, FilterRelayMessage(m))
	}
	return infos
}

// PopupInfo 接收者弹窗视图
// 只暴露润色后的文本，原文不对接收者展示
type PopupInfo struct {
	ID             uint   `json:"id"`
	Variant        string `json:"variant"`
	SenderID       uint   `json:"sender_id"`
	SenderNickname string `json:"sender_nickname"`
	RefinedText    string `json:"refined_text"`
	CreatedAt      string `json:"created_at"`
}

// FilterPopupInfo 构造弹窗视图
func FilterPopupInfo(m *model.RelayMessage, senderNickname string) *PopupInfo {
	if m == nil {
		return nil
	}
	return &PopupInfo{
		ID:             m.ID,
		Variant:        m.Variant,
		SenderID:       m.SenderID,
		SenderNickname: senderNickname,
		RefinedText:    m.RefinedText,
		CreatedAt:      m.CreatedAt.Format(timeLayout),
	}
}

// UsageInfo 发送额度视图
type UsageInfo struct {
	Used            int64  `json:"used"`
	Max             int64  `json:"max"`
	CanSend         bool   `json:"can_send"`
	NextAvailableAt string `json:"next_available_at,omitempty"`
}

// AvailabilityInfo 提交窗口可用性视图（feedback变体）
type AvailabilityInfo struct {
	CanWrite        bool   `json:"can_write"`
	Reason          string `json:"reason,omitempty"`
	PeriodKey       string `json:"period_key,omitempty"`
	NextAvailableAt string `json:"next_available_at,omitempty"`
}

// HistoryInfo 分页历史视图
type HistoryInfo struct {
	Messages []*RelayMessageInfo `json:"messages"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Total    int64               `json:"total"`
}
