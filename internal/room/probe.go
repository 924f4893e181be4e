package room

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// ImageProber は画像URLの到達確認のインターフェース。
type ImageProber interface {
	// ProbeImage は画像URLが到達可能で、image/*を返すことを確認する。
	ProbeImage(ctx context.Context, imageURL string) error
}

// HTTPImageProber はHEADリクエストで画像URLを確認する。
// clientにはSSRF防止機能付きのクライアントを渡すこと。
type HTTPImageProber struct {
	client *http.Client
}

// NewHTTPImageProber はHTTPImageProberを生成する。
func NewHTTPImageProber(client *http.Client) *HTTPImageProber {
	return &HTTPImageProber{client: client}
}

// ProbeImage はHEADリクエストを送り、2xxかつContent-Typeがimage/*であることを確認する。
func (p *HTTPImageProber) ProbeImage(ctx context.Context, imageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "RoomFinder/1.0 ImageProbe")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("not an image: %q", resp.Header.Get("Content-Type"))
	}
	return nil
}

var _ ImageProber = (*HTTPImageProber)(nil)
