/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/Seednode/wordrace/internal/obslog"
)

func cspHome(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'; img-src 'self'")
}

func homePage(cfg *Config) string {
	var body strings.Builder

	body.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	body.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	body.WriteString(`<style>body{font-family:sans-serif;max-width:40em;margin:2em auto;padding:0 1em;}code{background:#eee;padding:0 .2em;}img{display:block;margin:1em 0;}</style>`)
	body.WriteString("<title>wordrace</title></head><body>")
	body.WriteString("<h1>wordrace</h1>")
	body.WriteString("<p>Race another player through German vocabulary, one word or quiz question at a time.</p>")
	body.WriteString(fmt.Sprintf("<p>Connect a client to <code>%s</code> and send <code>joinChallenge</code> with a game type of <code>wordRace</code> or <code>quiz</code>.</p>",
		html.EscapeString(cfg.prefix+"/challenge/ws")))
	body.WriteString(fmt.Sprintf(`<img src="%s" alt="QR code for this server" width="320" height="320">`,
		html.EscapeString(cfg.prefix+"/challenge/qr")))
	body.WriteString(fmt.Sprintf(`<p><a href="%s">Live stats</a></p>`, html.EscapeString(cfg.prefix+"/challenge/stats")))
	body.WriteString("</body></html>")

	return body.String()
}

func serveHomePage(cfg *Config, errs chan<- error) httprouter.Handle {
	page := homePage(cfg)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		cspHome(cfg, w)

		written, err := w.Write([]byte(page))
		if err != nil {
			errs <- err

			return
		}

		obslog.L().Debug("served_home",
			zap.Int("bytes", written),
			zap.String("remote", realIP(r)),
			zap.Duration("took", time.Since(startTime).Round(time.Microsecond)),
		)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /challenge/

User-agent: CCBot
Disallow: /

User-agent: GPTBot
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}

func registerHome(cfg *Config, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/", serveHomePage(cfg, errs))
	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))
	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))
	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))
}
