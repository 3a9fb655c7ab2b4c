package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"TuneBay/logger"
)

// Item 采集源返回的一次解析结果：元数据加音频字节流。
// Body 是流式的，调用方负责 Close。
type Item struct {
	ID          string  // 源侧稳定ID，可能为空
	Title       string
	Artist      string
	Duration    float64 // 秒
	ContentType string
	Size        int64 // 未知时为 -1
	Body        io.ReadCloser
}

// resolveResponse 解析服务的应答格式
type resolveResponse struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration"`
	AudioURL string  `json:"audioUrl"`
}

// Client 音频解析服务客户端。解析服务接收 URL 或搜索词，
// 返回元数据与音频下载地址；它被视为不可靠且可能很慢的外部依赖。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建解析服务客户端
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// 总超时由调用方的 context 控制，这里只兜底
			Timeout: 10 * time.Minute,
		},
	}
}

// Fetch 将定位符解析为元数据与音频字节流，超时由 ctx 控制
func (c *Client) Fetch(ctx context.Context, locator string) (*Item, error) {
	meta, err := c.resolve(ctx, locator)
	if err != nil {
		return nil, err
	}
	if meta.AudioURL == "" {
		return nil, fmt.Errorf("解析服务未返回音频地址: %s", locator)
	}

	body, size, contentType, err := c.download(ctx, meta.AudioURL)
	if err != nil {
		return nil, err
	}

	title := meta.Title
	if title == "" {
		title = "Unknown"
	}
	return &Item{
		ID:          meta.ID,
		Title:       title,
		Artist:      meta.Artist,
		Duration:    meta.Duration,
		ContentType: contentType,
		Size:        size,
		Body:        body,
	}, nil
}

// resolve 调用解析服务，将定位符转换为元数据
func (c *Client) resolve(ctx context.Context, locator string) (*resolveResponse, error) {
	endpoint := fmt.Sprintf("%s/resolve?locator=%s", c.baseURL, url.QueryEscape(locator))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("创建解析请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("解析请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("解析请求失败，状态码: %d", resp.StatusCode)
	}

	var meta resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("解析应答解码失败: %w", err)
	}

	logger.Debug("定位符解析完成",
		logger.String("locator", locator),
		logger.String("sourceId", meta.ID),
		logger.String("title", meta.Title))
	return &meta, nil
}

// download 拉取音频字节流，不在内存中缓冲整个对象
func (c *Client) download(ctx context.Context, audioURL string) (io.ReadCloser, int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, 0, "", fmt.Errorf("创建下载请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("下载音频失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, "", fmt.Errorf("下载请求失败，状态码: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return resp.Body, resp.ContentLength, contentType, nil
}
