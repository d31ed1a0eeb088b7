package server

import "google.golang.org/grpc"

// Registrar attaches one gRPC service to the server.
type Registrar interface {
	Register(s *grpc.Server)
}
