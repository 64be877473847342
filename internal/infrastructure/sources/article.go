package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

// ArticleClient 抓取文章页面并抽取正文，实现 ingest.ArticleFetcher
type ArticleClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewArticleClient 创建文章抓取客户端。
// 单次请求超时由调用方通过 context 控制，这里只设置兜底超时。
func NewArticleClient(timeout time.Duration) *ArticleClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ArticleClient{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "news-chat-ingest/1.0",
	}
}

// Fetch 抓取页面并返回段落正文，段落之间以空格连接
func (c *ArticleClient) Fetch(ctx context.Context, url string) (string, error) {
	ctx, span := tracer.Start(ctx, "sources.Fetch",
		trace.WithAttributes(attribute.String("article.url", url)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to fetch article %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch article %s returned status %d", url, resp.StatusCode)
	}

	text, err := ExtractParagraphText(resp.Body)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to parse article %s: %w", url, err)
	}
	return text, nil
}

// ExtractParagraphText 解析 HTML 并拼接所有 <p> 元素内的文本。
// script/style 内容不计入正文。
func ExtractParagraphText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var paragraphs []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "p":
				if text := nodeText(n); text != "" {
					paragraphs = append(paragraphs, text)
				}
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.Join(paragraphs, " "), nil
}

// nodeText 收集节点子树内的全部文本并压缩空白
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)

	return strings.Join(strings.Fields(sb.String()), " ")
}
