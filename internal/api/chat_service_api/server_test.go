package chat_service_api

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/Domenick1991/airbot/internal/service/dialogue"
)

type MockChat struct {
	mock.Mock
}

func (m *MockChat) ProcessMessage(ctx context.Context, in dialogue.MessageInput) (*dialogue.Reply, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dialogue.Reply), args.Error(1)
}

func (m *MockChat) RecordFeedback(ctx context.Context, fb domain.Feedback) error {
	args := m.Called(ctx, fb)
	return args.Error(0)
}

type methodRecorder struct {
	mu      sync.Mutex
	methods []string
}

func (r *methodRecorder) intercept(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	r.mu.Lock()
	r.methods = append(r.methods, info.FullMethod)
	r.mu.Unlock()
	return handler(ctx, req)
}

func startServer(t *testing.T, chat Chat, opts ...grpc.ServerOption) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(opts...)
	Register(srv, NewServer(chat))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestServer_ProcessMessage(t *testing.T) {
	chat := &MockChat{}
	recorder := &methodRecorder{}
	client := startServer(t, chat, grpc.UnaryInterceptor(recorder.intercept))

	input := dialogue.MessageInput{SessionID: "s1", UserID: "user123", Text: "Check booking BK001"}
	chat.On("ProcessMessage", mock.Anything, input).Return(&dialogue.Reply{
		MessageID:       3,
		Text:            "Booking BK001",
		Intent:          domain.IntentCheckStatus,
		Confidence:      1,
		Recommendations: []domain.Recommendation{},
		State:           dialogue.StateSummary{Flow: domain.FlowNone, Step: domain.StepIdle},
	}, nil)

	req, err := structpb.NewStruct(map[string]any{
		"session_id": "s1",
		"user_id":    "user123",
		"message":    "Check booking BK001",
	})
	require.NoError(t, err)

	out, err := client.ProcessMessage(context.Background(), req)
	require.NoError(t, err)

	fields := out.AsMap()
	assert.Equal(t, "s1", fields["session_id"])
	assert.Equal(t, "Booking BK001", fields["response"])
	assert.Equal(t, "check_status", fields["intent"])
	assert.EqualValues(t, 3, fields["message_id"])
	state, ok := fields["workflow_state"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(domain.StepIdle), state["step"])

	assert.Equal(t, []string{ProcessMessageMethod}, recorder.methods)
	chat.AssertExpectations(t)
}

func TestServer_ProcessMessageDefaults(t *testing.T) {
	chat := &MockChat{}
	client := startServer(t, chat)

	chat.On("ProcessMessage", mock.Anything, mock.MatchedBy(func(in dialogue.MessageInput) bool {
		return in.SessionID != "" && in.UserID == guestUserID && in.Text == "hi"
	})).Return(&dialogue.Reply{Text: "Hello!"}, nil)

	req, err := structpb.NewStruct(map[string]any{"message": "hi"})
	require.NoError(t, err)

	out, err := client.ProcessMessage(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, out.AsMap()["session_id"])
	chat.AssertExpectations(t)
}

func TestServer_ErrorCodes(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "invalid input", err: fmt.Errorf("%w: message is required", dialogue.ErrInvalidInput), want: codes.InvalidArgument},
		{name: "internal", err: fmt.Errorf("state store unavailable"), want: codes.Internal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chat := &MockChat{}
			client := startServer(t, chat)
			chat.On("ProcessMessage", mock.Anything, mock.Anything).Return(nil, tc.err)

			req, err := structpb.NewStruct(map[string]any{"session_id": "s1", "user_id": "u1"})
			require.NoError(t, err)

			_, err = client.ProcessMessage(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tc.want, status.Code(err))
			if tc.want == codes.Internal {
				assert.Equal(t, "internal error", status.Convert(err).Message())
			}
		})
	}
}

func TestServer_RecordFeedback(t *testing.T) {
	chat := &MockChat{}
	client := startServer(t, chat)

	id := int64(9)
	chat.On("RecordFeedback", mock.Anything, domain.Feedback{
		SessionID: "s1",
		UserID:    "user123",
		MessageID: &id,
		Rating:    4,
		Comment:   "quick answer",
	}).Return(nil)

	req, err := structpb.NewStruct(map[string]any{
		"session_id": "s1",
		"user_id":    "user123",
		"message_id": 9,
		"rating":     4,
		"comment":    "quick answer",
	})
	require.NoError(t, err)

	_, err = client.RecordFeedback(context.Background(), req)
	require.NoError(t, err)
	chat.AssertExpectations(t)
}

func TestServer_RecordFeedbackWithoutMessage(t *testing.T) {
	chat := &MockChat{}
	client := startServer(t, chat)

	chat.On("RecordFeedback", mock.Anything, mock.MatchedBy(func(fb domain.Feedback) bool {
		return fb.MessageID == nil && fb.Rating == 2
	})).Return(fmt.Errorf("%w: unknown session", dialogue.ErrInvalidInput))

	req, err := structpb.NewStruct(map[string]any{"session_id": "s1", "rating": 2})
	require.NoError(t, err)

	_, err = client.RecordFeedback(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
