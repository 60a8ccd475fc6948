package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartPolling_HandlesCommandsFromConfiguredChat(t *testing.T) {
	var (
		mu      sync.Mutex
		replies []string
		served  bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if served {
				fmt.Fprint(w, `{"ok":true,"result":[]}`)
				return
			}
			served = true
			fmt.Fprint(w, `{"ok":true,"result":[
				{"update_id":7,"message":{"text":" /status ","chat":{"id":42}}},
				{"update_id":8,"message":{"text":"/emergency","chat":{"id":666}}}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			replies = append(replies, "sent")
		}
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "42", "")
	n.APIBase = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	var handled []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.StartPolling(ctx, func(cmd string) string {
			handled = append(handled, cmd)
			cancel()
			return "ok"
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("polling did not stop")
	}

	require.Equal(t, []string{"/status"}, handled)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, replies, 1)
}
