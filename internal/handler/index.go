package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Rewrite Proxy</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 4rem auto; padding: 0 1rem; }
form { display: flex; gap: .5rem; }
input[type=url] { flex: 1; padding: .5rem; font-size: 1rem; }
button { padding: .5rem 1rem; font-size: 1rem; }
</style>
</head>
<body>
<h1>Rewrite Proxy</h1>
<form action="/proxy-page" method="get">
<input type="url" name="url" placeholder="https://example.com/" required autofocus>
<button type="submit">Open</button>
</form>
</body>
</html>
`

// IndexHandler serves the landing page with the URL form.
type IndexHandler struct{}

// NewIndexHandler creates an IndexHandler.
func NewIndexHandler() *IndexHandler {
	return &IndexHandler{}
}

// Handle writes the landing page.
func (h *IndexHandler) Handle(c echo.Context) error {
	return c.HTML(http.StatusOK, indexHTML)
}
