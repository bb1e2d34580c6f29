package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
)

// QuestionRequest is the payload of a follow-up question request.
type QuestionRequest struct {
	Question string `json:"question"`
}

// QuestionReply carries either the answered result or an error message.
type QuestionReply struct {
	Result *domain.InquiryResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// QuestionHandler adapts an inquiry service to the raw queue handler. Ask
// failures are returned to the requester inside the reply.
func QuestionHandler(svc ports.InquiryService) func(context.Context, []byte) ([]byte, error) {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req QuestionRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return json.Marshal(QuestionReply{Error: fmt.Sprintf("decode request: %v", err)})
		}
		result, err := svc.Ask(ctx, req.Question)
		if err != nil {
			return json.Marshal(QuestionReply{Error: err.Error()})
		}
		return json.Marshal(QuestionReply{Result: result})
	}
}

// Ask sends question to a worker and decodes its reply.
func (q *Queue) Ask(ctx context.Context, question string) (domain.InquiryResult, error) {
	if strings.TrimSpace(question) == "" {
		return domain.InquiryResult{}, domain.WrapError(domain.ErrInvalidInput, "ask over nats", errors.New("question is empty"))
	}
	payload, err := json.Marshal(QuestionRequest{Question: question})
	if err != nil {
		return domain.InquiryResult{}, fmt.Errorf("encode request: %w", err)
	}
	raw, err := q.Request(ctx, payload)
	if err != nil {
		return domain.InquiryResult{}, err
	}
	return DecodeReply(raw)
}

func DecodeReply(raw []byte) (domain.InquiryResult, error) {
	var reply QuestionReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return domain.InquiryResult{}, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Error != "" {
		return domain.InquiryResult{}, fmt.Errorf("worker: %s", reply.Error)
	}
	if reply.Result == nil {
		return domain.InquiryResult{}, errors.New("worker: empty reply")
	}
	return *reply.Result, nil
}
