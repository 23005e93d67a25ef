package rpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region helpers
func startServer(t *testing.T) *Client {
	t.Helper()
	tr, err := tracker.New(state.NewMemoryStore(), tracker.Options{})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(NewServer(tr, nil, zap.NewNop()))
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
	})
	return NewClientWithConn(conn)
}

// fakeConn records the last invoked method and returns a canned error.
type fakeConn struct {
	grpc.ClientConnInterface
	method string
	err    error
}

func (f *fakeConn) Invoke(_ context.Context, method string, _, _ interface{}, _ ...grpc.CallOption) error {
	f.method = method
	return f.err
}
// #endregion helpers

// #region client-tests
func TestNewClientLazyConnect(t *testing.T) {
	c, err := NewClient("localhost:0")
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestClientCloseWithoutConn(t *testing.T) {
	assert.NoError(t, NewClientWithConn(&fakeConn{}).Close())
}

func TestClientWrapsErrors(t *testing.T) {
	fc := &fakeConn{err: errors.New("unavailable")}
	c := NewClientWithConn(fc)

	_, err := c.AdjustConfidence(context.Background(), 0.5, "pune", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adjust rpc")
	assert.Equal(t, "/adaptive.v1.ConfidenceService/AdjustConfidence", fc.method)

	_, err = c.ApplyFeedback(context.Background(), feedback.Submission{CaseID: "c", City: "pune", UserFeedback: "up"})
	require.Error(t, err)
	assert.Equal(t, "/adaptive.v1.ConfidenceService/ApplyFeedback", fc.method)
}
// #endregion client-tests

// #region roundtrip-tests
func TestApplyThenAdjustOverBufconn(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	out, err := structpb.NewStruct(map[string]interface{}{"fsi": 2.0})
	require.NoError(t, err)

	for i := 0; i < 17; i++ {
		_, err := c.ApplyFeedback(ctx, feedback.Submission{CaseID: "m", City: "Mumbai", UserFeedback: "approve", Output: out})
		require.NoError(t, err)
	}
	var last FeedbackResult
	for i := 0; i < 3; i++ {
		last, err = c.ApplyFeedback(ctx, feedback.Submission{CaseID: "m", City: "Mumbai", UserFeedback: "reject", Output: out})
		require.NoError(t, err)
	}

	assert.Equal(t, "mumbai", last.City)
	require.NotNil(t, last.Action)
	assert.Equal(t, 1, *last.Action)
	assert.Equal(t, 17, last.ApproveCount)
	assert.Equal(t, 3, last.RejectCount)
	assert.Len(t, last.ActionWeights, 3)
	assert.NotEmpty(t, last.AuditTrail)

	d, err := c.AdjustConfidence(ctx, 0.80, "Mumbai", []string{"MUM-FSI-001"})
	require.NoError(t, err)
	assert.InDelta(t, 0.88, d.Adjusted, 1e-9)
	assert.Equal(t, 20, d.Cases)
	assert.True(t, d.Seen)
	assert.Contains(t, d.Explanation, "85%")
}

func TestValidationMapsToInvalidArgument(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	_, err := c.AdjustConfidence(ctx, 1.5, "Mumbai", nil)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))

	_, err = c.ApplyFeedback(ctx, feedback.Submission{CaseID: "c", City: "", UserFeedback: "up"})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

func TestApplyRejectsNonIntegralAction(t *testing.T) {
	tr, err := tracker.New(state.NewMemoryStore(), tracker.Options{})
	require.NoError(t, err)
	s := NewServer(tr, nil, nil)

	for _, action := range []interface{}{1.9, -0.5, -1.0, 1e12, "1"} {
		in, err := structpb.NewStruct(map[string]interface{}{
			"case_id": "c1", "city": "Pune", "user_feedback": "approve", "action": action,
		})
		require.NoError(t, err)
		_, err = s.ApplyFeedback(context.Background(), in)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "action %v", action)
	}

	events, err := tr.EventsForCity("pune")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestApplyAcceptsWholeNumberOrNullAction(t *testing.T) {
	tr, err := tracker.New(state.NewMemoryStore(), tracker.Options{})
	require.NoError(t, err)
	s := NewServer(tr, nil, nil)

	in, err := structpb.NewStruct(map[string]interface{}{
		"case_id": "c1", "city": "Pune", "user_feedback": "approve", "action": 2.0,
	})
	require.NoError(t, err)
	_, err = s.ApplyFeedback(context.Background(), in)
	require.NoError(t, err)

	in.Fields["action"] = structpb.NewNullValue()
	in.Fields["case_id"] = structpb.NewStringValue("c2")
	_, err = s.ApplyFeedback(context.Background(), in)
	require.NoError(t, err)

	events, err := tr.EventsForCity("pune")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].Action)
	assert.Equal(t, 2, *events[0].Action)
}

func TestAdjustRequiresBase(t *testing.T) {
	tr, err := tracker.New(state.NewMemoryStore(), tracker.Options{})
	require.NoError(t, err)
	s := NewServer(tr, nil, nil)

	_, err = s.AdjustConfidence(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	in, _ := structpb.NewStruct(map[string]interface{}{"base_confidence": "high", "city": "pune"})
	_, err = s.AdjustConfidence(context.Background(), in)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
// #endregion roundtrip-tests
