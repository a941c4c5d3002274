package peer

import (
	"context"
	"errors"
	"net"

	logger "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/TEENet-io/swap-go/rpc"
)

// Handler consumes inbound messages. Returned errors travel back to the
// sender.
type Handler interface {
	HandleMessage(ctx context.Context, msg *Message) error
}

type Server struct {
	rpc.UnimplementedPeerServer

	grpcServer *grpc.Server
	handler    Handler
}

func NewServer(h Handler, opts ...grpc.ServerOption) *Server {
	opts = append(opts, grpc.UnaryInterceptor(unaryLogger))
	s := &Server{grpcServer: grpc.NewServer(opts...), handler: h}
	rpc.RegisterPeerServer(s.grpcServer, s)
	return s
}

func (s *Server) Deliver(ctx context.Context, in *rpc.Message) (*rpc.Reply, error) {
	if in.GetFrom() == "" {
		return nil, status.Error(codes.InvalidArgument, "message without sender address")
	}
	msg, err := fromProto(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.handler.HandleMessage(ctx, msg); err != nil {
		logger.WithFields(logger.Fields{
			"type":   msg.Type,
			"swapID": msg.SwapID,
			"from":   msg.From,
		}).Warnf("peer message rejected: %v", err)
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return &rpc.Reply{}, nil
}

// Serve blocks until Stop is called or lis fails.
func (s *Server) Serve(lis net.Listener) error {
	err := s.grpcServer.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

func unaryLogger(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	logger.Debugf("gRPC method: %s", info.FullMethod)
	return handler(ctx, req)
}
