package ollama

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/kirillkom/case-inquiry/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx reply from the Ollama server.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, body)
	}
	return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
}

// classifyOllamaError treats a model that is still loading (503), an
// overloaded server and dropped connections as transient. A 404 means the
// model is not pulled and will not fix itself.
func classifyOllamaError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, transientOllamaError)
}

func transientOllamaError(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return resilience.RetryableHTTPStatus(statusErr.StatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
