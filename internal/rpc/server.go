package rpc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/signals"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/tracker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region server
// Server implements ConfidenceServiceServer over a Tracker.
type Server struct {
	tracker  *tracker.Tracker
	inferrer signals.Inferrer
	logger   *zap.Logger
}

// NewServer creates a Server. nil inferrer uses signals.Default().
func NewServer(t *tracker.Tracker, inferrer signals.Inferrer, logger *zap.Logger) *Server {
	if inferrer == nil {
		inferrer = signals.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{tracker: t, inferrer: inferrer, logger: logger}
}

// NewGRPCServer builds a grpc.Server with logging and the service registered.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(LoggingInterceptor(srv.logger))}, opts...)
	s := grpc.NewServer(opts...)
	RegisterConfidenceServiceServer(s, srv)
	return s
}
// #endregion server

// #region adjust
// AdjustConfidence expects base_confidence, city and optional action_hint.
func (s *Server) AdjustConfidence(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	baseVal, ok := fields["base_confidence"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "base_confidence is required")
	}
	base := baseVal.GetNumberValue()
	if _, isNum := baseVal.GetKind().(*structpb.Value_NumberValue); !isNum {
		base = math.NaN()
	}

	var hint []string
	for _, v := range fields["action_hint"].GetListValue().GetValues() {
		hint = append(hint, v.GetStringValue())
	}

	d, err := s.tracker.Decide(base, fields["city"].GetStringValue(), hint)
	if err != nil {
		return nil, s.toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"base_confidence":     d.Base,
		"adjusted_confidence": d.Adjusted,
		"multiplier":          d.Multiplier,
		"approval_rate":       d.ApprovalRate,
		"cases":               d.Cases,
		"seen":                d.Seen,
		"explanation":         d.Explanation,
	})
}
// #endregion adjust

// #region apply
// actionIndex accepts null or a non-negative whole number. Anything else is
// rejected, never truncated.
func actionIndex(v *structpb.Value) (*int, error) {
	switch k := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
			return nil, &feedback.ValidationError{Field: "action", Message: fmt.Sprintf("%v is not a non-negative whole number", n)}
		}
		return feedback.ActionIndex(int(n)), nil
	}
	return nil, &feedback.ValidationError{Field: "action", Message: "must be a number"}
}

// ApplyFeedback expects case_id, user_feedback and either city or input_case.city.
func (s *Server) ApplyFeedback(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	sub := feedback.Submission{
		CaseID:       fields["case_id"].GetStringValue(),
		ProjectID:    fields["project_id"].GetStringValue(),
		City:         fields["city"].GetStringValue(),
		UserFeedback: fields["user_feedback"].GetStringValue(),
		Input:        fields["input_case"].GetStructValue(),
		Output:       fields["output_report"].GetStructValue(),
	}
	if v, ok := fields["action"]; ok {
		action, err := actionIndex(v)
		if err != nil {
			return nil, s.toStatus(err)
		}
		sub.Action = action
	}

	ev, err := sub.Event(s.inferrer.Infer)
	if err != nil {
		return nil, s.toStatus(err)
	}
	res, err := s.tracker.ApplyFeedback(ev)
	if err != nil {
		return nil, s.toStatus(err)
	}

	weights := make([]interface{}, len(res.State.ActionWeights))
	for i, w := range res.State.ActionWeights {
		weights[i] = w
	}
	trail := make([]interface{}, len(res.AuditTrail))
	for i, line := range res.AuditTrail {
		trail[i] = line
	}
	out := map[string]interface{}{
		"event_id":              res.EventID,
		"city":                  res.State.City,
		"approve_count":         res.State.ApproveCount,
		"reject_count":          res.State.RejectCount,
		"approval_rate":         res.ApprovalRate,
		"confidence_multiplier": res.Multiplier,
		"action_weights":        weights,
		"audit_trail":           trail,
	}
	if res.Change.Action != nil {
		out["action"] = *res.Change.Action
	}
	return structpb.NewStruct(out)
}
// #endregion apply

// #region errors
func (s *Server) toStatus(err error) error {
	if feedback.IsValidation(err) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Error("rpc failed", zap.Error(err))
	return status.Error(codes.Internal, err.Error())
}

// LoggingInterceptor logs each unary call with its duration and status code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
// #endregion errors
