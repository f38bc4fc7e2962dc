package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zhouzirui/hotel-checkin/backend/internal/model/face"
)

// ErrTimeout 推理调用超出调用方给定的时限
var ErrTimeout = errors.New("inference timed out")

// Engine 人脸推理服务的外部协作契约。实现必须尊重 ctx 的截止时间，
// 超时以 ErrTimeout 上报，由会话按空批次处理。
type Engine interface {
	Detect(ctx context.Context, frame image.Image) ([]face.Detection, error)
}

// HTTPEngine 通过HTTP调用旁路推理服务（detect端点接收JPEG，返回人脸列表）
type HTTPEngine struct {
	baseURL string
	client  *http.Client
	quality int
}

// NewHTTPEngine 创建HTTP推理客户端。client超时略大于会话侧的调用时限，
// 真正的截止时间由每次调用的 ctx 控制。
func NewHTTPEngine(baseURL string, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		quality: 80,
	}
}

// Detect 编码并上传一帧，返回检测到的人脸批次
func (e *HTTPEngine) Detect(ctx context.Context, frame image.Image) ([]face.Detection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("encode frame failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("build inference request failed: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var detections []face.Detection
	if err := json.NewDecoder(resp.Body).Decode(&detections); err != nil {
		return nil, fmt.Errorf("decode inference response failed: %w", err)
	}
	return detections, nil
}
