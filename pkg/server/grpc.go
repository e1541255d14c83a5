// Package server provides the gRPC health server of the monitor daemon.
package server

import (
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name tracking the event feed. The empty
// service name reports the same status.
const ServiceName = "taskpulse.Monitor"

// Server encapsulates the gRPC server setup and lifecycle management.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// New initializes a Server exposing the standard health service, reporting
// NOT_SERVING until SetServing(true).
func New(tp trace.TracerProvider) *Server {
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler(otelgrpc.WithTracerProvider(tp))),
	)
	reflection.Register(grpcServer)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	s := &Server{grpcServer: grpcServer, health: hs}
	s.SetServing(false)
	return s
}

// SetServing flips the reported status of both the overall and the monitor
// service.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve starts the gRPC server on the provided listener, blocking until
// the server stops or encounters an error.
func (s *Server) Serve(lis net.Listener) error { return s.grpcServer.Serve(lis) }

// GracefulStop stops accepting connections and waits for in-flight RPCs.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
