package gitsync_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AaroSnid/stm32-driver-sync/internal/gitsync"
	"github.com/AaroSnid/stm32-driver-sync/internal/logging"
)

func TestLoggingTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Served-By", "test")
		_, _ = w.Write([]byte("pack data"))
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: logging.LevelDebug, Output: &buf, NoColor: true})
	client := &http.Client{Transport: gitsync.NewLoggingTransport(nil, logger)}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/info/refs", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.SetBasicAuth("alice", "secret")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	out := buf.String()
	for _, exp := range []string{"GET /info/refs", "X-Served-By: test", "Authorization: <redacted>"} {
		if !strings.Contains(out, exp) {
			t.Errorf("expected %q in log output:\n%s", exp, out)
		}
	}
	for _, unexp := range []string{"pack data", "YWxpY2U6c2VjcmV0"} {
		if strings.Contains(out, unexp) {
			t.Errorf("unexpected %q in log output:\n%s", unexp, out)
		}
	}
}
