package handler

import (
	"errors"
	"fmt"

	"relay-system/internal/service"
	"relay-system/pkg/jwt"
	"relay-system/pkg/logger"
	"relay-system/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const timeLayout = "2006-01-02 15:04:05"

// currentUserID 从JWT中间件写入的Context取当前用户ID
func currentUserID(c *gin.Context) (uint, bool) {
	userIDStr := jwt.GetUserID(c)
	if userIDStr == "" {
		response.Unauthorized(c, "用户未认证")
		return 0, false
	}
	var uid uint
	if _, err := fmt.Sscanf(userIDStr, "%d", &uid); err != nil {
		response.BadRequest(c, "invalid user id")
		return 0, false
	}
	return uid, true
}

// RelayHandler 传话消息接口
// passalong和feedback各挂一个实例，路由不同、处理逻辑相同
type RelayHandler struct {
	service *service.RelayService
}

func NewRelayHandler(s *service.RelayService) *RelayHandler {
	return &RelayHandler{service: s}
}

// writeAdmissionError 准入拒绝的统一响应（附带下次可用时间）
func writeAdmissionError(c *gin.Context, ae *service.AdmissionError) {
	data := gin.H{"reason": ae.Reason}
	if ae.NextAvailableAt != nil {
		data["next_available_at"] = ae.NextAvailableAt.Format(timeLayout)
	}
	response.TooManyRequests(c, ae.Message, data)
}

// Create 发送消息
func (h *RelayHandler) Create(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	type req struct {
		Text string `json:"text" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	message, err := h.service.CreateMessage(uid, r.Text)
	if err != nil {
		if ae, isAdmission := service.AsAdmissionError(err); isAdmission {
			writeAdmissionError(c, ae)
			return
		}
		switch {
		case errors.Is(err, service.ErrNotPaired):
			response.BadRequest(c, "还没有建立配对")
		case errors.Is(err, service.ErrMessageLength):
			response.BadRequest(c, err.Error())
		default:
			logger.Error("创建传话消息失败", zap.Error(err))
			response.InternalError(c, "创建消息失败")
		}
		return
	}

	// 此时消息还在润色中，返回的refined_text为空
	response.SuccessWithMessage(c, "消息已提交", response.FilterRelayMessage(message))
}

// Popup 查询当前待展示的消息（没有则data为空）
func (h *RelayHandler) Popup(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	message, sender, err := h.service.PeekForReceiver(uid)
	if err != nil {
		response.InternalError(c, "查询失败")
		return
	}
	if message == nil {
		response.Success(c, nil)
		return
	}

	var nickname string
	if sender != nil {
		nickname = sender.Nickname
	}
	response.Success(c, response.FilterPopupInfo(message, nickname))
}

// AckDelivered 确认弹窗已展示
func (h *RelayHandler) AckDelivered(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := h.pathMessageID(c)
	if !ok {
		return
	}

	if err := h.service.AcknowledgeDelivered(messageID, uid); err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "投递确认成功", nil)
}

// AckRead 确认已读
func (h *RelayHandler) AckRead(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := h.pathMessageID(c)
	if !ok {
		return
	}

	if err := h.service.AcknowledgeRead(messageID, uid); err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已读确认成功", nil)
}

// Usage 查询发送额度
func (h *RelayHandler) Usage(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	summary, err := h.service.Usage(uid)
	if err != nil {
		response.InternalError(c, "查询失败")
		return
	}

	info := &response.UsageInfo{
		Used:    summary.Used,
		Max:     summary.Max,
		CanSend: summary.CanSend,
	}
	if summary.NextAvailableAt != nil {
		info.NextAvailableAt = summary.NextAvailableAt.Format(timeLayout)
	}
	response.Success(c, info)
}

// Availability 查询提交窗口可用性
func (h *RelayHandler) Availability(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	avail, err := h.service.Availability(uid)
	if err != nil {
		response.InternalError(c, "查询失败")
		return
	}

	info := &response.AvailabilityInfo{
		CanWrite:  avail.CanWrite,
		Reason:    avail.Reason,
		PeriodKey: avail.PeriodKey,
	}
	if avail.NextAvailableAt != nil {
		info.NextAvailableAt = avail.NextAvailableAt.Format(timeLayout)
	}
	response.Success(c, info)
}

// History 查询配对的消息历史
func (h *RelayHandler) History(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)

	messages, total, err := h.service.History(uid, page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrNotPaired) {
			response.BadRequest(c, "还没有建立配对")
			return
		}
		response.InternalError(c, "查询失败")
		return
	}

	response.Success(c, &response.HistoryInfo{
		Messages: response.FilterRelayMessages(messages),
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// Unread 查询未读消息列表
func (h *RelayHandler) Unread(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	messages, err := h.service.UnreadForReceiver(uid)
	if err != nil {
		response.InternalError(c, "查询失败")
		return
	}
	response.Success(c, gin.H{
		"count":    len(messages),
		"messages": response.FilterRelayMessages(messages),
	})
}

// pathMessageID 解析路径参数中的消息ID
func (h *RelayHandler) pathMessageID(c *gin.Context) (uint, bool) {
	var id uint
	if _, err := fmt.Sscanf(c.Param("id"), "%d", &id); err != nil || id == 0 {
		response.BadRequest(c, "invalid message id")
		return 0, false
	}
	return id, true
}

// writeLifecycleError 状态流转接口的错误映射
// 业务拒绝（不存在/无权/状态不符）返回对应错误码，其余按内部错误处理
func (h *RelayHandler) writeLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "消息不存在")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, "无权操作该消息")
	case errors.Is(err, service.ErrInvalidStatus):
		response.BadRequest(c, err.Error())
	default:
		logger.Error("消息状态流转失败", zap.Error(err))
		response.InternalError(c, "操作失败")
	}
}

// queryInt 解析查询参数里的整数，缺失或非法时用默认值
func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
