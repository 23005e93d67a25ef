package rpc

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/confidence"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region types
// FeedbackResult holds the response from an ApplyFeedback RPC call.
type FeedbackResult struct {
	EventID       string
	City          string
	Action        *int
	ApproveCount  int
	RejectCount   int
	ApprovalRate  float64
	Multiplier    float64
	ActionWeights []float64
	AuditTrail    []string
}
// #endregion types

// #region client-struct
// Client wraps a gRPC connection to ConfidenceService.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// NewClient connects to a ConfidenceService server.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
// Used for testing with bufconn or an injected fake.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client owns one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region adjust
// AdjustConfidence asks the server to scale base by city's approval history.
func (c *Client) AdjustConfidence(ctx context.Context, base float64, city string, actionHint []string) (confidence.Decision, error) {
	hint := make([]interface{}, len(actionHint))
	for i, h := range actionHint {
		hint[i] = h
	}
	in, err := structpb.NewStruct(map[string]interface{}{
		"base_confidence": base,
		"city":            city,
		"action_hint":     hint,
	})
	if err != nil {
		return confidence.Decision{}, fmt.Errorf("adjust request: %w", err)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, adjustMethod, in, out); err != nil {
		return confidence.Decision{}, fmt.Errorf("adjust rpc: %w", err)
	}

	f := out.GetFields()
	return confidence.Decision{
		Base:         f["base_confidence"].GetNumberValue(),
		Adjusted:     f["adjusted_confidence"].GetNumberValue(),
		Multiplier:   f["multiplier"].GetNumberValue(),
		ApprovalRate: f["approval_rate"].GetNumberValue(),
		Cases:        int(f["cases"].GetNumberValue()),
		Seen:         f["seen"].GetBoolValue(),
		Explanation:  f["explanation"].GetStringValue(),
	}, nil
}
// #endregion adjust

// #region apply
// ApplyFeedback submits one judgment.
func (c *Client) ApplyFeedback(ctx context.Context, sub feedback.Submission) (FeedbackResult, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"case_id":       structpb.NewStringValue(sub.CaseID),
		"project_id":    structpb.NewStringValue(sub.ProjectID),
		"city":          structpb.NewStringValue(sub.City),
		"user_feedback": structpb.NewStringValue(sub.UserFeedback),
	}}
	if sub.Action != nil {
		in.Fields["action"] = structpb.NewNumberValue(float64(*sub.Action))
	}
	if sub.Input != nil {
		in.Fields["input_case"] = structpb.NewStructValue(sub.Input)
	}
	if sub.Output != nil {
		in.Fields["output_report"] = structpb.NewStructValue(sub.Output)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, applyMethod, in, out); err != nil {
		return FeedbackResult{}, fmt.Errorf("apply feedback rpc: %w", err)
	}

	f := out.GetFields()
	res := FeedbackResult{
		EventID:      f["event_id"].GetStringValue(),
		City:         f["city"].GetStringValue(),
		ApproveCount: int(f["approve_count"].GetNumberValue()),
		RejectCount:  int(f["reject_count"].GetNumberValue()),
		ApprovalRate: f["approval_rate"].GetNumberValue(),
		Multiplier:   f["confidence_multiplier"].GetNumberValue(),
	}
	if v, ok := f["action"]; ok {
		res.Action = feedback.ActionIndex(int(v.GetNumberValue()))
	}
	for _, v := range f["action_weights"].GetListValue().GetValues() {
		res.ActionWeights = append(res.ActionWeights, v.GetNumberValue())
	}
	for _, v := range f["audit_trail"].GetListValue().GetValues() {
		res.AuditTrail = append(res.AuditTrail, v.GetStringValue())
	}
	return res, nil
}
// #endregion apply
