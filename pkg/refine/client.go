package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"relay-system/config"
)

// 文本润色服务客户端
// 润色服务是外部黑盒：输入原文和双方昵称，输出改写后的文本
// 任何错误（网络、非200、超时、空结果）对调用方都是一次失败，由调用方决定回退策略

// Client 润色服务HTTP客户端
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient 创建润色客户端
// 超时由调用方通过context控制，这里不再设置http.Client级别超时
func NewClient(cfg config.RefineConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{},
	}
}

// refineRequest 润色请求体
type refineRequest struct {
	Original     string `json:"original"`
	SenderName   string `json:"sender_name"`
	ReceiverName string `json:"receiver_name"`
	Variant      string `json:"variant"`
}

// refineResponse 润色响应体
type refineResponse struct {
	Refined string `json:"refined"`
}

// Refine 调用润色服务改写文本
func (c *Client) Refine(ctx context.Context, original, senderName, receiverName, variant string) (string, error) {
	body, err := json.Marshal(refineRequest{
		Original:     original,
		SenderName:   senderName,
		ReceiverName: receiverName,
		Variant:      variant,
	})
	if err != nil {
		return "", fmt.Errorf("encode refine request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/refine", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build refine request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("call refine service failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 读掉body便于连接复用
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("refine service returned status %d", resp.StatusCode)
	}

	var r refineResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("decode refine response failed: %w", err)
	}
	if strings.TrimSpace(r.Refined) == "" {
		return "", errors.New("refine service returned empty text")
	}

	return r.Refined, nil
}
