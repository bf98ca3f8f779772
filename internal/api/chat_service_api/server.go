package chat_service_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/Domenick1991/airbot/internal/service/dialogue"
)

const guestUserID = "guest"

type Chat interface {
	ProcessMessage(ctx context.Context, in dialogue.MessageInput) (*dialogue.Reply, error)
	RecordFeedback(ctx context.Context, fb domain.Feedback) error
}

// Server exposes the dialogue engine over gRPC.
type Server struct {
	chat Chat
}

var _ ChatServiceServer = (*Server)(nil)

func NewServer(chat Chat) *Server {
	return &Server{chat: chat}
}

func (s *Server) ProcessMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := dialogue.MessageInput{
		SessionID: stringField(req, "session_id"),
		UserID:    stringField(req, "user_id"),
		Text:      stringField(req, "message"),
	}
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}
	if in.UserID == "" {
		in.UserID = guestUserID
	}

	reply, err := s.chat.ProcessMessage(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := toStruct(struct {
		SessionID string `json:"session_id"`
		*dialogue.Reply
	}{SessionID: in.SessionID, Reply: reply})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) RecordFeedback(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	fb := domain.Feedback{
		SessionID: stringField(req, "session_id"),
		UserID:    stringField(req, "user_id"),
		Rating:    int(numberField(req, "rating")),
		Comment:   stringField(req, "comment"),
	}
	if v, ok := req.GetFields()["message_id"]; ok {
		if _, isNumber := v.GetKind().(*structpb.Value_NumberValue); isNumber {
			id := int64(v.GetNumberValue())
			fb.MessageID = &id
		}
	}

	if err := s.chat.RecordFeedback(ctx, fb); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func numberField(s *structpb.Struct, name string) float64 {
	return s.GetFields()[name].GetNumberValue()
}

// toStruct goes through JSON so the gRPC reply carries the same field names
// as the HTTP one.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return structpb.NewStruct(fields)
}

func toStatus(err error) error {
	if errors.Is(err, dialogue.ErrInvalidInput) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	slog.Error("chat rpc failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
