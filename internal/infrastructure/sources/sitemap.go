// Package sources 提供新闻站点数据获取能力：sitemap 列表与正文抓取
package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("sources")

// urlSet sitemap 的 <urlset> 结构，仅解析 loc 字段
type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc string `xml:"loc"`
}

// sitemapIndex sitemap 索引文件，条目指向子 sitemap
type sitemapIndex struct {
	XMLName  xml.Name   `xml:"sitemapindex"`
	Sitemaps []urlEntry `xml:"sitemap"`
}

// FeedClient 拉取 sitemap 并解析其中的页面地址，实现 ingest.SourceLister
type FeedClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewFeedClient 创建 sitemap 客户端
func NewFeedClient(timeout time.Duration) *FeedClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &FeedClient{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "news-chat-ingest/1.0",
	}
}

// ListURLs 拉取并解析一个 sitemap。
// 同时兼容 <urlset> 与 <sitemapindex> 两种根元素，索引文件返回子 sitemap 地址。
func (c *FeedClient) ListURLs(ctx context.Context, feedURL string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "sources.ListURLs",
		trace.WithAttributes(attribute.String("feed.url", feedURL)))
	defer span.End()

	body, err := c.get(ctx, feedURL)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		return locs(set.URLs), nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		return locs(index.Sitemaps), nil
	}

	return nil, fmt.Errorf("failed to parse sitemap %s: no url entries found", feedURL)
}

func (c *FeedClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func locs(entries []urlEntry) []string {
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Loc != "" {
			urls = append(urls, e.Loc)
		}
	}
	return urls
}
