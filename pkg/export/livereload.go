// This file implements the --serve preview: the exported HTML bundle is
// served over HTTP and connected browsers reload via Server-Sent Events
// whenever the bundle is regenerated.
package export

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHub manages SSE connections and file watching for the preview
// server.
type ReloadHub struct {
	bundleDir string
	watcher   *fsnotify.Watcher

	mu      sync.RWMutex
	clients map[chan struct{}]struct{}

	ctx    context.Context
	cancel context.CancelFunc

	// debounce rapid regenerations
	lastEvent time.Time
	debounce  time.Duration
}

// NewReloadHub creates a reload hub watching the given bundle directory.
func NewReloadHub(bundleDir string) (*ReloadHub, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ReloadHub{
		bundleDir: bundleDir,
		watcher:   watcher,
		clients:   make(map[chan struct{}]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		debounce:  200 * time.Millisecond,
	}, nil
}

// Start begins watching the bundle directory.
func (h *ReloadHub) Start() error {
	if err := h.watcher.Add(h.bundleDir); err != nil {
		return fmt.Errorf("watch bundle dir: %w", err)
	}
	go h.watchLoop()
	return nil
}

// Stop shuts the hub down and disconnects all clients.
func (h *ReloadHub) Stop() {
	h.cancel()
	h.watcher.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		close(ch)
	}
	h.clients = make(map[chan struct{}]struct{})
}

// ClientCount returns the number of connected clients.
func (h *ReloadHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *ReloadHub) watchLoop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			now := time.Now()
			if now.Sub(h.lastEvent) < h.debounce {
				continue
			}
			h.lastEvent = now
			h.notifyClients()

		case _, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (h *ReloadHub) notifyClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- struct{}{}:
		default:
			// Client not draining; skip rather than block the watch loop.
		}
	}
}

// SSEHandler returns the HTTP handler for the events endpoint.
func (h *ReloadHub) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		clientCh := make(chan struct{}, 1)
		h.mu.Lock()
		h.clients[clientCh] = struct{}{}
		h.mu.Unlock()

		defer func() {
			h.mu.Lock()
			delete(h.clients, clientCh)
			h.mu.Unlock()
		}()

		fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-h.ctx.Done():
				return
			case _, ok := <-clientCh:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: reload\ndata: {\"action\":\"reload\"}\n\n")
				flusher.Flush()
			}
		}
	}
}

// reloadScript connects browsers to the SSE endpoint with exponential
// backoff reconnects.
const reloadScript = `<script>
(function() {
  if (typeof(EventSource) === 'undefined') return;
  var delay = 1000;
  function connect() {
    var es = new EventSource('/__preview__/events');
    es.addEventListener('connected', function() { delay = 1000; });
    es.addEventListener('reload', function() { location.reload(); });
    es.onerror = function() {
      es.close();
      setTimeout(connect, delay);
      delay = Math.min(delay * 2, 30000);
    };
  }
  connect();
})();
</script>`

// PreviewHandler serves the bundle directory with the live-reload script
// injected into HTML responses and the SSE endpoint mounted under
// /__preview__/events.
func (h *ReloadHub) PreviewHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/__preview__/events", h.SSEHandler())
	mux.Handle("/", injectReload(http.FileServer(http.Dir(h.bundleDir))))
	return mux
}

func injectReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if filepath.Ext(r.URL.Path) != ".html" && r.URL.Path != "/" && filepath.Ext(r.URL.Path) != "" {
			next.ServeHTTP(w, r)
			return
		}

		irw := &injectingResponseWriter{
			ResponseWriter: w,
			inject:         []byte(reloadScript),
		}
		next.ServeHTTP(irw, r)
		irw.Flush()
	})
}

// injectingResponseWriter buffers HTML output and splices the reload script
// in before </body>.
type injectingResponseWriter struct {
	http.ResponseWriter
	inject    []byte
	injected  bool
	buf       []byte
	committed bool
}

func (w *injectingResponseWriter) Write(b []byte) (int, error) {
	if w.committed {
		return w.ResponseWriter.Write(b)
	}

	w.buf = append(w.buf, b...)

	bodyClose := []byte("</body>")
	if idx := lastIndex(w.buf, bodyClose); idx >= 0 && !w.injected {
		newBuf := make([]byte, 0, len(w.buf)+len(w.inject))
		newBuf = append(newBuf, w.buf[:idx]...)
		newBuf = append(newBuf, w.inject...)
		newBuf = append(newBuf, w.buf[idx:]...)
		w.buf = newBuf
		w.injected = true
	}

	if lastIndex(w.buf, []byte("</html>")) >= 0 {
		w.committed = true
		_, err := w.ResponseWriter.Write(w.buf)
		return len(b), err
	}

	return len(b), nil
}

// Flush writes out anything still buffered, injecting at the end when the
// document never closed its body tag.
func (w *injectingResponseWriter) Flush() {
	if !w.committed && len(w.buf) > 0 {
		w.committed = true
		if !w.injected {
			w.buf = append(w.buf, w.inject...)
		}
		w.ResponseWriter.Write(w.buf)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func lastIndex(haystack, needle []byte) int {
	if len(needle) == 0 {
		return -1
	}
	for i := len(haystack) - len(needle); i >= 0; i-- {
		found := true
		for j := 0; j < len(needle); j++ {
			if haystack[i+j] != needle[j] {
				found = false
				break
			}
		}
		if found {
			return i
		}
	}
	return -1
}
