package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-chat-api/internal/domain/entity"
)

type fakeEmbedder struct {
	err      error
	mismatch bool
	calls    int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.mismatch {
		n--
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

type fakeWriter struct {
	resetErr  error
	upsertErr error
	resets    int
	upserts   [][]entity.ChunkPoint
}

func (f *fakeWriter) Reset(context.Context) error {
	f.resets++
	return f.resetErr
}

func (f *fakeWriter) Upsert(_ context.Context, points []entity.ChunkPoint) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, points)
	return nil
}

type fakeLister struct {
	urls map[string][]string
	errs map[string]error
}

func (f *fakeLister) ListURLs(_ context.Context, feed string) ([]string, error) {
	if err := f.errs[feed]; err != nil {
		return nil, err
	}
	return f.urls[feed], nil
}

type fakeFetcher struct {
	texts map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	if err := f.errs[url]; err != nil {
		return "", err
	}
	return f.texts[url], nil
}

func articleText(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "Sentence number %d carries enough words to matter. ", i)
	}
	return strings.TrimSpace(sb.String())
}

func newTestOrchestrator(lister *fakeLister, fetcher *fakeFetcher, embedder *fakeEmbedder, writer *fakeWriter, opts Options) *Orchestrator {
	if opts.ArticlePrefix == "" {
		opts.ArticlePrefix = "https://news.example.com/"
	}
	return NewOrchestrator(embedder, writer, lister, fetcher, opts)
}

func TestRun_ResetFailureIsFatal(t *testing.T) {
	writer := &fakeWriter{resetErr: errors.New("milvus down")}
	o := newTestOrchestrator(&fakeLister{}, &fakeFetcher{}, &fakeEmbedder{}, writer, Options{})

	processed, err := o.Run(context.Background())

	require.Error(t, err)
	assert.Zero(t, processed)
}

func TestRun_FiltersAndDeduplicates(t *testing.T) {
	feed := "https://news.example.com/sitemap.xml"
	article := "https://news.example.com/2026/aug/28/economy"
	lister := &fakeLister{urls: map[string][]string{feed: {
		article,
		// 重复条目只处理一次
		article,
		// 前缀不符
		"https://other.example.com/story",
		// 嵌套 feed 索引
		"https://news.example.com/briefing.xml",
	}}}
	fetcher := &fakeFetcher{texts: map[string]string{article: articleText(20)}}
	writer := &fakeWriter{}
	o := newTestOrchestrator(lister, fetcher, &fakeEmbedder{}, writer, Options{Feeds: []string{feed}})

	processed, err := o.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.Len(t, writer.upserts, 1)
}

func TestRun_GlobalArticleCap(t *testing.T) {
	feed := "https://news.example.com/sitemap.xml"
	var urls []string
	texts := make(map[string]string)
	for i := 0; i < 10; i++ {
		u := fmt.Sprintf("https://news.example.com/story-%d", i)
		urls = append(urls, u)
		texts[u] = articleText(20)
	}
	lister := &fakeLister{urls: map[string][]string{feed: urls}}
	writer := &fakeWriter{}
	o := newTestOrchestrator(lister, &fakeFetcher{texts: texts}, &fakeEmbedder{}, writer, Options{
		Feeds:       []string{feed},
		MaxArticles: 3,
	})

	processed, err := o.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, processed)
	assert.Len(t, writer.upserts, 3)
}

func TestRun_ShortArticleSkippedAndNotCounted(t *testing.T) {
	feed := "https://news.example.com/sitemap.xml"
	short := "https://news.example.com/short"
	long := "https://news.example.com/long"
	lister := &fakeLister{urls: map[string][]string{feed: {short, long}}}
	fetcher := &fakeFetcher{texts: map[string]string{
		short: "Too short to index.",
		long:  articleText(20),
	}}
	writer := &fakeWriter{}
	o := newTestOrchestrator(lister, fetcher, &fakeEmbedder{}, writer, Options{Feeds: []string{feed}})

	processed, err := o.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.Len(t, writer.upserts, 1)
	assert.Equal(t, long, writer.upserts[0][0].URL)
}

func TestRun_EmbedMismatchSkipsWholeArticle(t *testing.T) {
	feed := "https://news.example.com/sitemap.xml"
	article := "https://news.example.com/story"
	lister := &fakeLister{urls: map[string][]string{feed: {article}}}
	fetcher := &fakeFetcher{texts: map[string]string{article: articleText(20)}}
	writer := &fakeWriter{}
	o := newTestOrchestrator(lister, fetcher, &fakeEmbedder{mismatch: true}, writer, Options{Feeds: []string{feed}})

	processed, err := o.Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, processed)
	// 数量不一致时绝不写入部分片段
	assert.Empty(t, writer.upserts)
}

func TestRun_PerArticleFailuresAreIsolated(t *testing.T) {
	feed := "https://news.example.com/sitemap.xml"
	broken := "https://news.example.com/broken"
	good := "https://news.example.com/good"
	lister := &fakeLister{urls: map[string][]string{feed: {broken, good}}}
	fetcher := &fakeFetcher{
		texts: map[string]string{good: articleText(20)},
		errs:  map[string]error{broken: errors.New("connection refused")},
	}
	writer := &fakeWriter{}
	o := newTestOrchestrator(lister, fetcher, &fakeEmbedder{}, writer, Options{Feeds: []string{feed}})

	processed, err := o.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestRun_FeedFailureSkipsToNextFeed(t *testing.T) {
	bad := "https://news.example.com/bad.xml"
	goodFeed := "https://news.example.com/good.xml"
	article := "https://news.example.com/story"
	lister := &fakeLister{
		urls: map[string][]string{goodFeed: {article}},
		errs: map[string]error{bad: errors.New("503")},
	}
	fetcher := &fakeFetcher{texts: map[string]string{article: articleText(20)}}
	writer := &fakeWriter{}
	o := newTestOrchestrator(lister, fetcher, &fakeEmbedder{}, writer, Options{Feeds: []string{bad, goodFeed}})

	processed, err := o.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, writer.resets)
}

func TestChunkID_DeterministicPerURLAndIndex(t *testing.T) {
	a := chunkID("https://news.example.com/story", 0)
	b := chunkID("https://news.example.com/story", 0)
	c := chunkID("https://news.example.com/story", 1)
	d := chunkID("https://news.example.com/other", 0)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}
