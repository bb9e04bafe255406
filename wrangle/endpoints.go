package wrangle

import (
	"context"

	"github.com/tidytable/tidytable/assist"
	"github.com/tidytable/tidytable/audit"
	"github.com/tidytable/tidytable/kit"
)

// The read and agent-facing operations are exposed as kit endpoints
// shared by the HTTP and MCP transports. Auditing happens once, in the
// middleware, whichever transport the call arrived on.

// RevertRequest names the history entry whose snapshot to restore.
type RevertRequest struct {
	EntryID string `json:"entry_id"`
}

// SummaryRequest selects the assistant reply style.
type SummaryRequest struct {
	Style string `json:"style"`
}

// SummaryReply carries the assistant's answer.
type SummaryReply struct {
	Reply string `json:"reply"`
}

// instrument wraps an endpoint with the audit middleware. Without a
// logger the endpoint runs bare.
func (s *Service) instrument(action string, ep kit.Endpoint) kit.Endpoint {
	if s.auditor == nil {
		return ep
	}
	return kit.Chain(audit.Middleware(s.auditor, action))(ep)
}

// ProfileEndpoint analyzes the current dataset. The request is ignored.
func (s *Service) ProfileEndpoint() kit.Endpoint {
	return s.instrument("profile", func(ctx context.Context, _ any) (any, error) {
		return s.Profile(ctx)
	})
}

// HistoryEndpoint lists the change ledger newest-first. The request is
// ignored.
func (s *Service) HistoryEndpoint() kit.Endpoint {
	return s.instrument("history", func(ctx context.Context, _ any) (any, error) {
		return s.History(ctx), nil
	})
}

// RevertEndpoint restores a snapshot; the request is *RevertRequest.
func (s *Service) RevertEndpoint() kit.Endpoint {
	return s.instrument("history_revert", func(ctx context.Context, req any) (any, error) {
		r := req.(*RevertRequest)
		return s.Revert(ctx, r.EntryID)
	})
}

// SummaryEndpoint describes the dataset in prose; the request is
// *SummaryRequest. An empty style means paragraph.
func (s *Service) SummaryEndpoint() kit.Endpoint {
	return s.instrument("chat_summary", func(ctx context.Context, req any) (any, error) {
		r := req.(*SummaryRequest)
		style := assist.Style(r.Style)
		if style == "" {
			style = assist.StyleParagraph
		}
		text, err := s.Summarize(ctx, style)
		if err != nil {
			return nil, err
		}
		return &SummaryReply{Reply: text}, nil
	})
}
