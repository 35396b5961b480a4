package grpcserver

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	pb "ddbstream/api/pb"
	"ddbstream/service"
)

// Server adapts the subscriber registry to the DdbStream gRPC service.
type Server struct {
	pb.UnimplementedDdbStreamServer
	registry *service.Registry
	log      *slog.Logger
}

func NewServer(r *service.Registry, logger *slog.Logger) *Server {
	return &Server{registry: r, log: logger}
}

// -------------------- Registration --------------------

// Register attaches DdbStream and the standard health service to srv and
// marks both as serving. The returned health server lets the caller flip
// the status on shutdown.
func Register(srv *grpc.Server, s *Server) *health.Server {
	pb.RegisterDdbStreamServer(srv, s)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(pb.DdbStream_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return hs
}

// -------------------- Streams --------------------

// Subscribe registers the caller and forwards every event queued for it
// until the client leaves, a send fails, or the registry drops it.
func (s *Server) Subscribe(
	_ *pb.SubscribeRequest,
	stream pb.DdbStream_SubscribeServer,
) error {
	ctx := stream.Context()

	label := "unknown"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		label = p.Addr.String()
	}

	sub := s.registry.NewSubscriber(ctx, label)
	s.registry.Register(sub)
	defer s.registry.Unregister(sub.ID())

	log := s.log.With("subscriber", sub.ID(), "peer", label)
	log.Info("subscribe")

	for {
		select {
		case <-ctx.Done():
			log.Info("subscriber left")
			return nil

		case ev, ok := <-sub.Events():
			if !ok {
				log.Info("subscriber evicted")
				return status.Error(codes.Unavailable, "subscriber dropped: stream fell behind or closed")
			}
			err := stream.Send(&pb.SubscribeResponse{
				Type: string(ev.Kind),
				Data: ev.Data,
			})
			if err != nil {
				log.Info("send failed", "err", err)
				return err
			}
		}
	}
}
