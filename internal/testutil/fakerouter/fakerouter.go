// Package fakerouter serves a small admin UI shaped like the supported router
// firmware, for browser-level tests.
package fakerouter

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"
)

// Options control how the fake UI behaves.
type Options struct {
	Password string
	// StallConfirmation leaves the final dialog open and never navigates,
	// so no restart signal appears.
	StallConfirmation bool
	// HangAdminPage makes the admin page never answer.
	HangAdminPage bool
}

// Router is a running fake router.
type Router struct {
	*httptest.Server
	reboots atomic.Int32
	logins  atomic.Int32
}

// Reboots returns how many reboot requests reached the router.
func (r *Router) Reboots() int { return int(r.reboots.Load()) }

// LoginAttempts returns how many login submissions reached the router.
func (r *Router) LoginAttempts() int { return int(r.logins.Load()) }

// AdminURL is the login page URL.
func (r *Router) AdminURL() string { return r.URL + "/" }

// Start launches the fake router and registers cleanup on t.
func Start(t testing.TB, opts Options) *Router {
	t.Helper()
	r := &Router{}
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		if opts.HangAdminPage {
			select {
			case <-req.Context().Done():
			case <-time.After(time.Minute):
			}
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, adminPage, opts.Password, opts.StallConfirmation)
	})
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, req *http.Request) {
		r.logins.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/reboot", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		r.reboots.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/rebooting", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Rebooting</title></head><body><div class="reboot-progress">Rebooting...</div></body></html>`)
	})

	r.Server = httptest.NewServer(mux)
	t.Cleanup(r.Server.Close)
	return r
}

// ChromePath returns a Chrome binary usable by the tests, or "" when none is installed.
func ChromePath() string {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable", "chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// RequireChrome skips the test when no Chrome is available or -short is set.
func RequireChrome(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	p := ChromePath()
	if p == "" {
		t.Skip("no Chrome binary found; skipping browser test")
	}
	return p
}

const adminPage = `<!DOCTYPE html>
<html>
<head><title>Router Admin</title>
<style>.hidden { display: none; } .panel-mask { position: fixed; inset: 0; }</style>
</head>
<body>
<div id="loginDialog">
  <input id="loginDialogPassword" type="password" name="password">
  <button id="loginDialogBtn" type="button" onclick="login()">Log in</button>
  <div class="login-error hidden">Incorrect password</div>
</div>
<div id="app" class="hidden">
  <div id="nav"><a href="javascript:void(0)" onclick="showSettings()">Advanced</a></div>
  <div id="setnav" class="cpe-set-nav hidden"><ul><li onclick="showSystem()"><span>System settings</span></li></ul></div>
  <div id="system" class="hidden"><button id="btnReboot" type="button" onclick="show('dialog1')">Reboot</button></div>
  <div id="dialog1" class="hidden"><button class="btn btn-primary" type="button" onclick="hide('dialog1'); show('dialog2')">Reboot now</button></div>
  <div id="dialog2" class="hidden"><a data-id="ok" class="btn btn-primary" href="javascript:void(0)" onclick="confirmReboot()">OK</a></div>
</div>
<script>
const PASSWORD = %q;
const STALL = %t;
function show(id) { document.getElementById(id).classList.remove("hidden"); }
function hide(id) { document.getElementById(id).classList.add("hidden"); }
function login() {
  fetch("/api/login", {method: "POST"});
  if (document.getElementById("loginDialogPassword").value === PASSWORD) {
    hide("loginDialog");
    const mask = document.createElement("div");
    mask.className = "panel-mask";
    document.body.appendChild(mask);
    setTimeout(() => mask.remove(), 300);
    show("app");
  } else {
    document.querySelector(".login-error").classList.remove("hidden");
  }
}
function showSettings() { show("setnav"); }
function showSystem() { show("system"); }
function confirmReboot() {
  if (STALL) { return; }
  fetch("/api/reboot", {method: "POST"}).then(() => { window.location.href = "/rebooting"; });
}
</script>
</body>
</html>`
