package preview

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const (
	// ReloadPath is the SSE endpoint.
	ReloadPath = "/__hot-reload"
	// ScriptPath serves the client script.
	ScriptPath = "/__hot-reload.js"

	scriptTag     = `<script src="` + ScriptPath + `"></script>`
	maxInjectSize = 512 * 1024
)

// InjectScript inserts tag before the last </body> end tag of doc. The tag is
// located with the HTML tokenizer, so "</body>" inside comments, scripts or
// attribute values is not matched. Without a body end tag, tag is appended.
func InjectScript(doc []byte, tag string) []byte {
	offset := bodyEndOffset(doc)
	if offset < 0 {
		out := make([]byte, 0, len(doc)+len(tag))
		return append(append(out, doc...), tag...)
	}
	out := make([]byte, 0, len(doc)+len(tag))
	out = append(out, doc[:offset]...)
	out = append(out, tag...)
	return append(out, doc[offset:]...)
}

func bodyEndOffset(doc []byte) int {
	z := html.NewTokenizer(bytes.NewReader(doc))
	pos, found := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a read error; either way the scan is over.
			return found
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == "body" {
				found = pos
			}
		}
		pos += raw
	}
}

// injectReloadScript buffers HTML responses and adds the live-reload script.
// Other content types and responses above maxInjectSize pass through.
func injectReloadScript(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		inj := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

type injector struct {
	http.ResponseWriter
	status      int
	buf         []byte
	decided     bool
	passthrough bool
	wroteHeader bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.writeHeader()
	}
}

func (i *injector) writeHeader() {
	if !i.wroteHeader {
		i.ResponseWriter.WriteHeader(i.status)
		i.wroteHeader = true
	}
}

func (i *injector) Write(data []byte) (int, error) {
	if !i.decided {
		i.decided = true
		ct := i.Header().Get("Content-Type")
		if ct == "" {
			ct = http.DetectContentType(data)
		}
		if !strings.Contains(ct, "text/html") || i.status != http.StatusOK {
			i.passthrough = true
		}
	}
	if i.passthrough {
		i.writeHeader()
		return i.ResponseWriter.Write(data)
	}
	if len(i.buf)+len(data) > maxInjectSize {
		i.passthrough = true
		i.writeHeader()
		if len(i.buf) > 0 {
			if _, err := i.ResponseWriter.Write(i.buf); err != nil {
				return 0, err
			}
			i.buf = nil
		}
		return i.ResponseWriter.Write(data)
	}
	i.buf = append(i.buf, data...)
	return len(data), nil
}

func (i *injector) finalize() {
	if i.passthrough || !i.decided {
		i.writeHeader()
		return
	}
	out := InjectScript(i.buf, scriptTag)
	i.Header().Set("Content-Length", strconv.Itoa(len(out)))
	i.writeHeader()
	_, _ = i.ResponseWriter.Write(out)
}
