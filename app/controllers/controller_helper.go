package controllers

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// requestHeaders copies the fasthttp headers into a net/http header map.
func requestHeaders(c *fiber.Ctx) http.Header {
	h := http.Header{}
	for k, vs := range c.GetReqHeaders() {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	return h
}

// requestQuery parses the raw query string, keeping repeated keys.
func requestQuery(c *fiber.Ctx) url.Values {
	q, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return url.Values{}
	}
	return q
}

// GetClientIP returns the peer address. Forwarded headers are only honoured
// when fiber is configured with a trusted proxy list.
func GetClientIP(c *fiber.Ctx) string {
	return c.IP()
}
