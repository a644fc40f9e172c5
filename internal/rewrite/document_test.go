package rewrite

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rewriteDoc(t *testing.T, src string) (*goquery.Document, *Result) {
	t.Helper()
	rw := NewRewriter(DefaultRule())
	res, err := rw.Rewrite(strings.NewReader(src), mustParse(t, "https://example.com/page"), proxyHost)
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	require.NoError(t, err)
	return doc, res
}

func TestRewriter_RewritesAttributes(t *testing.T) {
	doc, res := rewriteDoc(t, `<!DOCTYPE html>
<html><head><link rel="stylesheet" href="/s.css"></head>
<body>
<img src="/logo.png">
<a href="https://other.org/x">x</a>
<a href="#top">top</a>
<a href="http://localhost:3000/keep">keep</a>
<script src="app.js"></script>
</body></html>`)

	src, _ := doc.Find("img").Attr("src")
	assert.Equal(t, "/proxy?url=https%3A%2F%2Fexample.com%2Flogo.png", src)

	href, _ := doc.Find("link").Attr("href")
	assert.Equal(t, "/proxy?url=https%3A%2F%2Fexample.com%2Fs.css", href)

	links := doc.Find("a")
	first, _ := links.Eq(0).Attr("href")
	assert.Equal(t, "/proxy?url=https%3A%2F%2Fother.org%2Fx", first)
	anchor, _ := links.Eq(1).Attr("href")
	assert.Equal(t, "#top", anchor)
	kept, _ := links.Eq(2).Attr("href")
	assert.Equal(t, "http://localhost:3000/keep", kept)

	script, _ := doc.Find("script[src]").Attr("src")
	assert.Equal(t, "/proxy?url=https%3A%2F%2Fexample.com%2Fapp.js", script)

	assert.Equal(t, 4, res.Rewritten)
	assert.True(t, strings.HasPrefix(res.HTML, "<!DOCTYPE html>"))
}

func TestRewriter_InsertsBaseFirstInHead(t *testing.T) {
	doc, _ := rewriteDoc(t, `<html><head><title>t</title><base href="/sub/"></head><body></body></html>`)

	first := doc.Find("head").Children().First()
	assert.Equal(t, "base", goquery.NodeName(first))
	href, _ := first.Attr("href")
	assert.Equal(t, "https://example.com/", href)

	// The page's own <base> is never rewritten.
	own, _ := doc.Find("base").Eq(1).Attr("href")
	assert.Equal(t, "/sub/", own)
}

func TestRewriter_AppendsMonitorScriptLastInBody(t *testing.T) {
	doc, _ := rewriteDoc(t, `<html><body><p>hi</p><script>var x = 1;</script></body></html>`)

	last := doc.Find("body").Children().Last()
	assert.Equal(t, "script", goquery.NodeName(last))
	assert.Contains(t, last.Text(), `var TARGET_BASE_URL = "https://example.com";`)
	assert.Contains(t, last.Text(), "MutationObserver")
}

func TestRewriter_NoHeadOrBody(t *testing.T) {
	for name, src := range map[string]string{
		"fragment":  `<img src="/a.png">`,
		"empty":     ``,
		"text only": `just text`,
		"frameset":  `<html><frameset><frame src="/f.html"></frameset></html>`,
	} {
		t.Run(name, func(t *testing.T) {
			doc, res := rewriteDoc(t, src)

			href, ok := doc.Find("head base").Attr("href")
			require.True(t, ok)
			assert.Equal(t, "https://example.com/", href)

			assert.Contains(t, res.HTML, "<script>")
			assert.Contains(t, res.HTML, `var TARGET_BASE_URL = "https://example.com";`)
		})
	}
}

func TestRewriter_FramesetSrcRewritten(t *testing.T) {
	doc, _ := rewriteDoc(t, `<html><frameset><frame src="/f.html"></frameset></html>`)
	src, _ := doc.Find("frame").Attr("src")
	assert.Equal(t, "/proxy?url=https%3A%2F%2Fexample.com%2Ff.html", src)
}

func TestRewriter_Idempotent(t *testing.T) {
	rw := NewRewriter(DefaultRule())
	target := mustParse(t, "https://example.com/page")

	first, err := rw.Rewrite(strings.NewReader(`<img src="/a.png"><a href="https://x.org/">x</a>`), target, proxyHost)
	require.NoError(t, err)
	require.Equal(t, 2, first.Rewritten)

	second, err := rw.Rewrite(strings.NewReader(first.HTML), target, proxyHost)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Rewritten)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(second.HTML))
	require.NoError(t, err)
	src, _ := doc.Find("img").Attr("src")
	assert.Equal(t, "/proxy?url=https%3A%2F%2Fexample.com%2Fa.png", src)
}

func TestRewriter_MalformedAttributeKept(t *testing.T) {
	doc, res := rewriteDoc(t, `<img src="http://[::1"><img src="/ok.png">`)
	bad, _ := doc.Find("img").Eq(0).Attr("src")
	assert.Equal(t, "http://[::1", bad)
	assert.Equal(t, 1, res.Rewritten)
}
