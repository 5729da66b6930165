package handler

import (
	"errors"

	"relay-system/internal/service"
	"relay-system/pkg/response"

	"github.com/gin-gonic/gin"
)

type PairingHandler struct {
	service *service.PairingService
}

func NewPairingHandler(s *service.PairingService) *PairingHandler {
	return &PairingHandler{service: s}
}

// Create 建立配对
func (h *PairingHandler) Create(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	type req struct {
		PartnerID uint `json:"partner_id" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pairing, err := h.service.CreatePairing(uid, r.PartnerID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "配对成功", response.FilterPairingInfo(pairing))
}

// GetMine 查询当前配对
func (h *PairingHandler) GetMine(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	pairing, partner, err := h.service.GetMine(uid)
	if err != nil {
		if errors.Is(err, service.ErrNotPaired) {
			response.NotFound(c, "还没有建立配对")
			return
		}
		response.InternalError(c, "查询失败")
		return
	}

	response.Success(c, gin.H{
		"pairing": response.FilterPairingInfo(pairing),
		"partner": response.FilterUserInfo(partner),
	})
}

// Disconnect 解除配对
func (h *PairingHandler) Disconnect(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.service.Disconnect(uid); err != nil {
		if errors.Is(err, service.ErrNotPaired) {
			response.NotFound(c, "还没有建立配对")
			return
		}
		response.InternalError(c, "解除配对失败")
		return
	}
	response.SuccessWithMessage(c, "配对已解除", nil)
}
