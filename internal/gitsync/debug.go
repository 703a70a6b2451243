package gitsync

import (
	"bytes"
	"net/http"
	"net/http/httputil"

	"github.com/go-git/go-git/v5/plumbing/transport/client"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/AaroSnid/stm32-driver-sync/internal/logging"
)

// LoggingTransport is an http.RoundTripper that logs request and response
// headers at debug level. Bodies are never dumped: they carry pack data.
type LoggingTransport struct {
	Transport http.RoundTripper
	Logger    *logging.Logger
}

// NewLoggingTransport creates a new LoggingTransport. If transport is nil,
// http.DefaultTransport is used.
func NewLoggingTransport(transport http.RoundTripper, logger *logging.Logger) *LoggingTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LoggingTransport{
		Transport: transport,
		Logger:    logger,
	}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqDump, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		t.Logger.Debugf("error dumping request: %v", err)
	} else {
		t.Logger.Debugf("request:\n%s", redactAuthorization(reqDump))
	}

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		t.Logger.Debugf("error making request: %v", err)
		return resp, err
	}

	respDump, err := httputil.DumpResponse(resp, false)
	if err != nil {
		t.Logger.Debugf("error dumping response: %v", err)
	} else {
		t.Logger.Debugf("response:\n%s", respDump)
	}

	return resp, nil
}

// InstallTracing routes all HTTP(S) git traffic of the process through a
// LoggingTransport.
func InstallTracing(logger *logging.Logger) {
	c := githttp.NewClient(&http.Client{Transport: NewLoggingTransport(nil, logger)})
	client.InstallProtocol("https", c)
	client.InstallProtocol("http", c)
}

func redactAuthorization(dump []byte) string {
	lines := bytes.Split(dump, []byte("\r\n"))
	for i, line := range lines {
		if name, _, ok := bytes.Cut(line, []byte(":")); ok && bytes.EqualFold(name, []byte("Authorization")) {
			lines[i] = []byte("Authorization: <redacted>")
		}
	}
	return string(bytes.Join(lines, []byte("\r\n")))
}
