package grpc

import (
	"net"

	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const ServiceName = "polls"

type Server struct {
	srv    *grpc.Server
	health *health.Server
}

func NewGrpc() *Server {
	server := &Server{
		srv:    grpc.NewServer(),
		health: health.NewServer(),
	}

	healthpb.RegisterHealthServer(server.srv, server.health)
	reflection.Register(server.srv)

	server.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return server
}

func (v *Server) Listen() error {
	listener, err := net.Listen("tcp", viper.GetString("grpc_bind"))
	if err != nil {
		return err
	}

	return v.srv.Serve(listener)
}

// Stop marks the service as not serving before draining connections.
func (v *Server) Stop() {
	v.health.Shutdown()
	v.srv.GracefulStop()
}
